//go:build sdl2

// Package sdl implements device.Frontend on top of go-sdl2: window,
// renderer and texture setup, audio queueing for the GBA's 240x160
// BGR555 framebuffer and stereo float samples, with an x/image/draw
// bilinear scale in place of SDL's own nearest-neighbor renderer
// stretch so an arbitrary window size gets a properly filtered frame.
package sdl

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/valerio/gbacore/internal/audio"
	"github.com/valerio/gbacore/internal/device"
	"github.com/valerio/gbacore/internal/video"
	"github.com/veandco/go-sdl2/sdl"
	"golang.org/x/image/draw"
)

const bytesPerPixel = 4

// Frontend implements device.Frontend with an SDL2 window, an
// AUDIO_S16LSB playback device and SDL's keyboard event queue. The
// PPU's native 240x160 frame is scaled to the window's actual pixel
// size with x/image/draw rather than relying on SDL's own stretch
// blit, so an arbitrary integer (or non-integer) scale factor gets a
// properly filtered image instead of nearest-neighbor-via-renderer.
type Frontend struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture

	audioDevice sdl.AudioDeviceID

	native *image.RGBA // native 240x160 frame, refilled every Present
	scaled *image.RGBA // window-sized scale target blitted to the texture

	keyStates map[sdl.Keycode]bool
}

// New constructs an uninitialized SDL2 frontend; call Init before use.
func New() *Frontend {
	return &Frontend{keyStates: make(map[sdl.Keycode]bool)}
}

// Init implements device.Frontend.
func (f *Frontend) Init(cfg device.Config) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS | sdl.INIT_AUDIO); err != nil {
		return fmt.Errorf("sdl: init: %w", err)
	}

	scale := cfg.Scale
	if scale <= 0 {
		scale = 2
	}

	flags := uint32(sdl.WINDOW_SHOWN)
	if cfg.Fullscreen {
		flags |= sdl.WINDOW_FULLSCREEN_DESKTOP
	}

	windowWidth := video.ScreenWidth * scale
	windowHeight := video.ScreenHeight * scale

	window, err := sdl.CreateWindow(
		cfg.Title,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(windowWidth), int32(windowHeight),
		flags,
	)
	if err != nil {
		sdl.Quit()
		return fmt.Errorf("sdl: create window: %w", err)
	}
	f.window = window

	rendererFlags := uint32(sdl.RENDERER_ACCELERATED)
	if cfg.VSync {
		rendererFlags |= sdl.RENDERER_PRESENTVSYNC
	}
	renderer, err := sdl.CreateRenderer(window, -1, rendererFlags)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("sdl: create renderer: %w", err)
	}
	f.renderer = renderer

	// ABGR8888 matches image.RGBA's in-memory R,G,B,A byte order on a
	// little-endian host exactly, so the scaled image's Pix slice can
	// be handed to Update without any channel reordering.
	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING,
		int32(windowWidth), int32(windowHeight),
	)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return fmt.Errorf("sdl: create texture: %w", err)
	}
	f.texture = texture

	f.native = image.NewRGBA(image.Rect(0, 0, video.ScreenWidth, video.ScreenHeight))
	f.scaled = image.NewRGBA(image.Rect(0, 0, windowWidth, windowHeight))

	if err := f.initAudio(); err != nil {
		return fmt.Errorf("sdl: init audio: %w", err)
	}

	window.Show()
	return nil
}

func (f *Frontend) initAudio() error {
	spec := &sdl.AudioSpec{Freq: 32768, Format: sdl.AUDIO_S16LSB, Channels: 2, Samples: 1024}
	obtained := &sdl.AudioSpec{}
	dev, err := sdl.OpenAudioDevice("", false, spec, obtained, 0)
	if err != nil {
		return err
	}
	f.audioDevice = dev
	sdl.PauseAudioDevice(f.audioDevice, false)
	return nil
}

// Present implements device.VideoDevice: bgr555 expands to straight
// RGBA in f.native, x/image/draw scales that up to the window's pixel
// size into f.scaled, and the texture is updated from the scaled
// buffer directly (no renderer-side stretch).
func (f *Frontend) Present(frame *video.FrameBuffer) error {
	pixels := frame.Slice()
	for i, px := range pixels {
		r := uint8((px & 0x1F) << 3)
		g := uint8(((px >> 5) & 0x1F) << 3)
		b := uint8(((px >> 10) & 0x1F) << 3)
		o := i * bytesPerPixel
		f.native.Pix[o] = r
		f.native.Pix[o+1] = g
		f.native.Pix[o+2] = b
		f.native.Pix[o+3] = 0xFF
	}

	draw.BiLinear.Scale(f.scaled, f.scaled.Bounds(), f.native, f.native.Bounds(), draw.Src, nil)

	if err := f.texture.Update(nil, unsafe.Pointer(&f.scaled.Pix[0]), f.scaled.Stride); err != nil {
		return err
	}
	f.renderer.Clear()
	f.renderer.Copy(f.texture, nil, nil)
	f.renderer.Present()
	return nil
}

// QueueSamples implements device.AudioDevice: already-stereo float
// samples in [-1,1] are converted to interleaved S16LSB.
func (f *Frontend) QueueSamples(samples []audio.Sample) error {
	if f.audioDevice == 0 || len(samples) == 0 {
		return nil
	}
	out := make([]int16, len(samples)*2)
	for i, s := range samples {
		out[i*2] = floatToS16(s.L)
		out[i*2+1] = floatToS16(s.R)
	}
	bytes := (*[1 << 30]byte)(unsafe.Pointer(&out[0]))[: len(out)*2 : len(out)*2]
	return sdl.QueueAudio(f.audioDevice, bytes)
}

func floatToS16(v float32) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}

var keyMapping = map[sdl.Keycode]device.Key{
	sdl.K_a:      device.KeyA,
	sdl.K_s:      device.KeyB,
	sdl.K_q:      device.KeySelect,
	sdl.K_RETURN: device.KeyStart,
	sdl.K_RIGHT:  device.KeyRight,
	sdl.K_LEFT:   device.KeyLeft,
	sdl.K_UP:     device.KeyUp,
	sdl.K_DOWN:   device.KeyDown,
	sdl.K_w:      device.KeyR,
	sdl.K_e:      device.KeyL,
}

// Poll implements device.InputDevice.
func (f *Frontend) Poll() ([]device.InputEvent, error) {
	var events []device.InputEvent
	for evt := sdl.PollEvent(); evt != nil; evt = sdl.PollEvent() {
		ke, ok := evt.(*sdl.KeyboardEvent)
		if !ok {
			continue
		}
		key, known := keyMapping[ke.Keysym.Sym]
		if !known {
			continue
		}
		switch ke.Type {
		case sdl.KEYDOWN:
			state := device.KeyPress
			if f.keyStates[ke.Keysym.Sym] {
				state = device.KeyHold
			}
			f.keyStates[ke.Keysym.Sym] = true
			events = append(events, device.InputEvent{Key: key, State: state})
		case sdl.KEYUP:
			f.keyStates[ke.Keysym.Sym] = false
			events = append(events, device.InputEvent{Key: key, State: device.KeyRelease})
		}
	}
	return events, nil
}

// Cleanup implements device.Frontend.
func (f *Frontend) Cleanup() error {
	if f.audioDevice != 0 {
		sdl.CloseAudioDevice(f.audioDevice)
	}
	if f.texture != nil {
		f.texture.Destroy()
	}
	if f.renderer != nil {
		f.renderer.Destroy()
	}
	if f.window != nil {
		f.window.Destroy()
	}
	sdl.Quit()
	return nil
}
