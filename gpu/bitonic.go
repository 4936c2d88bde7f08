package gpu

// Pass is one compare-and-swap sweep of the bitonic network, identified by
// its merge stage size k and stride j. Mirrors shaders/bitonic.wgsl.
type Pass struct {
	K uint32
	J uint32
}

// Schedule enumerates the full bitonic network for a power-of-two array:
// log2(n) merge stages, each with passes of halving stride. The network is
// data independent, so the schedule only depends on the padded count and is
// computed once per scene.
func Schedule(paddedCount int) []Pass {
	var passes []Pass
	n := uint32(paddedCount)
	for k := uint32(2); k <= n; k <<= 1 {
		for j := k >> 1; j > 0; j >>= 1 {
			passes = append(passes, Pass{K: k, J: j})
		}
	}
	return passes
}

// SortElement is the CPU mirror of the GPU (key, index) pair.
type SortElement struct {
	Key   float32
	Index uint32
}

// applyPass executes one network pass on the CPU, element for element what
// one compute dispatch does. Tests run whole schedules through it to verify
// the ordering property without a device.
func applyPass(elements []SortElement, p Pass) {
	for i := uint32(0); i < uint32(len(elements)); i++ {
		partner := i ^ p.J
		if partner <= i {
			continue
		}
		ascending := i&p.K == 0
		a, b := elements[i], elements[partner]
		if (ascending && a.Key > b.Key) || (!ascending && a.Key < b.Key) {
			elements[i], elements[partner] = b, a
		}
	}
}
