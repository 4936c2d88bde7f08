package app

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

// pickHitRadius is the fixed world-space distance within which a click
// snaps the orbit pivot onto a splat.
const pickHitRadius = 0.2

// Input callbacks mutate camera state directly; GLFW delivers them on the
// main thread, so the camera has a single writer. Handlers only request
// redraws, never force them.

func (v *Viewer) installCallbacks() {
	v.win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		v.handleFramebufferResize(width, height)
	})

	v.win.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		dx := x - v.lastCursorX
		dy := y - v.lastCursorY
		v.lastCursorX = x
		v.lastCursorY = y

		switch v.dragButton {
		case glfw.MouseButtonLeft:
			v.camera.Rotate(float32(dx), float32(dy), v.settings.SpeedMultiplier)
			v.requestRedraw()
		case glfw.MouseButtonRight, glfw.MouseButtonMiddle:
			v.camera.Pan(float32(dx), float32(dy), v.settings.SpeedMultiplier)
			v.requestRedraw()
		}
	})

	v.win.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		switch action {
		case glfw.Press:
			v.lastCursorX, v.lastCursorY = w.GetCursorPos()
			v.dragButton = button
			if button == glfw.MouseButtonLeft && mods&glfw.ModControl != 0 {
				v.pickFocus()
			}
		case glfw.Release:
			if button == v.dragButton {
				v.dragButton = -1
			}
		}
	})

	v.win.SetScrollCallback(func(_ *glfw.Window, xoff, yoff float64) {
		v.camera.Zoom(float32(yoff), v.settings.SpeedMultiplier)
		v.requestRedraw()
	})

	v.win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		pressed := action != glfw.Release
		switch key {
		case glfw.KeyW:
			v.moveKeys.Forward = pressed
		case glfw.KeyS:
			v.moveKeys.Back = pressed
		case glfw.KeyA:
			v.moveKeys.Left = pressed
		case glfw.KeyD:
			v.moveKeys.Right = pressed
		case glfw.KeyE:
			v.moveKeys.Up = pressed
		case glfw.KeyC:
			v.moveKeys.Down = pressed
		case glfw.KeyLeft:
			v.moveKeys.YawLeft = pressed
		case glfw.KeyRight:
			v.moveKeys.YawRight = pressed
		case glfw.KeyUp:
			v.moveKeys.PitchUp = pressed
		case glfw.KeyDown:
			v.moveKeys.PitchDown = pressed
		case glfw.KeyQ:
			v.moveKeys.RollLeft = pressed
		case glfw.KeyZ:
			v.moveKeys.RollRight = pressed
		case glfw.KeyLeftShift, glfw.KeyRightShift:
			v.shiftHeld = pressed
		case glfw.KeyR:
			if action == glfw.Press {
				v.camera.Reset()
				v.requestRedraw()
			}
		case glfw.KeySpace:
			if action == glfw.Press && v.playback.Total > 0 {
				v.playback.Playing = !v.playback.Playing
			}
		case glfw.KeyEscape:
			if action == glfw.Press && v.exp != nil {
				v.cancelExport()
			}
		}
		if v.anyMoveKey() {
			v.requestRedraw()
		}
	})
}

// handleFramebufferResize reconfigures the swapchain and scene texture, or
// holds the new size back while an export runs. Resizing mid-export would
// replace the scene texture the capture target samples from and desync the
// direct-copy extents, so the pending size applies once the run retires.
func (v *Viewer) handleFramebufferResize(width, height int) {
	if v.exp != nil {
		v.resizePending = true
		v.pendingResizeW, v.pendingResizeH = width, height
		return
	}
	v.resize(width, height)
}

func (v *Viewer) resize(width, height int) {
	v.renderer.Resize(width, height)
	if height > 0 {
		v.camera.Aspect = float32(width) / float32(height)
	}
	v.requestRedraw()
}

func (v *Viewer) applyPendingResize() {
	if !v.resizePending {
		return
	}
	v.resizePending = false
	v.resize(v.pendingResizeW, v.pendingResizeH)
}

func (v *Viewer) anyMoveKey() bool {
	k := v.moveKeys
	return k.Forward || k.Back || k.Left || k.Right || k.Up || k.Down ||
		k.YawLeft || k.YawRight || k.PitchUp || k.PitchDown || k.RollLeft || k.RollRight
}

func (v *Viewer) pickFocus() {
	if !v.settings.PickToFocus || v.cloud == nil {
		return
	}
	w, h := v.win.GetFramebufferSize()
	idx, ok := v.camera.FocusPick(v.cloud, v.lastCursorX, v.lastCursorY, w, h, pickHitRadius)
	if !ok {
		return
	}
	v.camera.Focus(v.cloud.Positions[idx])
	v.log.Debugf("focus pivot on splat %d at %v", idx, v.cloud.Positions[idx])
	v.requestRedraw()
}
