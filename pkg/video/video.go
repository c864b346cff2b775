package video

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"gocv.io/x/gocv"
)

const (
	IntermediateCodec = "MJPG"
	DeliverableCodec  = "avc1"
	defaultWriterFPS  = 30.0
)

var (
	ErrOpenFailed  = errors.New("failed to open video")
	ErrWriteFailed = errors.New("failed to write video")
)

// Frame is one decoded video frame. Encoded holds a JPEG of the same pixels.
type Frame struct {
	Image   image.Image
	Encoded []byte
}

// Source yields frames sequentially. Read returns io.EOF once the stream is
// exhausted.
type Source interface {
	FPS() float64
	Size() (width int, height int)
	Read() (*Frame, error)
	Close() error
}

type Writer interface {
	Write(img image.Image) error
	Close() error
}

type IVideo interface {
	OpenSource(path string) (Source, error)
	NewWriter(path string, fps float64, width, height int) (Writer, error)
	ConvertToMP4(srcPath, dstPath string) error
}

type gocvVideo struct{}

func New() IVideo {
	return &gocvVideo{}
}

type gocvSource struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	fps     float64
	width   int
	height  int
}

func (v *gocvVideo) OpenSource(path string) (Source, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s", ErrOpenFailed, path)
	}

	return &gocvSource{
		capture: capture,
		mat:     gocv.NewMat(),
		fps:     capture.Get(gocv.VideoCaptureFPS),
		width:   int(capture.Get(gocv.VideoCaptureFrameWidth)),
		height:  int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}, nil
}

func (s *gocvSource) FPS() float64 {
	return s.fps
}

func (s *gocvSource) Size() (int, int) {
	return s.width, s.height
}

func (s *gocvSource) Read() (*Frame, error) {
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return nil, io.EOF
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, s.mat)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	encoded := make([]byte, buf.Len())
	copy(encoded, buf.GetBytes())

	return &Frame{Image: img, Encoded: encoded}, nil
}

func (s *gocvSource) Close() error {
	s.mat.Close()
	return s.capture.Close()
}

type gocvWriter struct {
	writer *gocv.VideoWriter
}

func (v *gocvVideo) NewWriter(path string, fps float64, width, height int) (Writer, error) {
	w, err := newWriter(path, IntermediateCodec, fps, width, height)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func newWriter(path, codec string, fps float64, width, height int) (*gocvWriter, error) {
	if fps <= 0 {
		fps = defaultWriterFPS
	}
	writer, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("%w: cannot open %s with codec %s", ErrWriteFailed, path, codec)
	}
	return &gocvWriter{writer: writer}, nil
}

func (w *gocvWriter) Write(img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	defer mat.Close()

	if err := w.writer.Write(mat); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

func (w *gocvWriter) Close() error {
	return w.writer.Close()
}

// ConvertToMP4 re-encodes srcPath into a browser playable mp4 at dstPath.
func (v *gocvVideo) ConvertToMP4(srcPath, dstPath string) error {
	capture, err := gocv.VideoCaptureFile(srcPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	defer capture.Close()
	if !capture.IsOpened() {
		return fmt.Errorf("%w: %s", ErrOpenFailed, srcPath)
	}

	fps := capture.Get(gocv.VideoCaptureFPS)
	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))

	writer, err := gocv.VideoWriterFile(dstPath, DeliverableCodec, fps, width, height, true)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	defer writer.Close()
	if !writer.IsOpened() {
		os.Remove(dstPath)
		return fmt.Errorf("%w: cannot open %s with codec %s", ErrWriteFailed, dstPath, DeliverableCodec)
	}

	mat := gocv.NewMat()
	defer mat.Close()

	for capture.Read(&mat) {
		if mat.Empty() {
			break
		}
		if err := writer.Write(mat); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
	}

	return nil
}
