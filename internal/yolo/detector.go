package yolo

import (
	"context"
	"image"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"coral_detector/internal/detection"
)

// Options configures a Detector.
type Options struct {
	ModelPath string
	// ImageSize is the square model input edge in pixels.
	ImageSize int
	// NumClasses is the number of class score rows in the output tensor.
	NumClasses int
	// NumAnchors is the number of candidate boxes in the output tensor.
	NumAnchors    int
	ConfThreshold float32
	IoUThreshold  float32
	// Threads limits intra-op threads; zero leaves the runtime default.
	Threads int
}

// DefaultOptions matches a 640px YOLO11 export with the Ultralytics default
// thresholds.
func DefaultOptions() Options {
	return Options{
		ImageSize:     640,
		NumAnchors:    8400,
		ConfThreshold: 0.25,
		IoUThreshold:  0.45,
	}
}

func (o Options) validate() error {
	switch {
	case o.ModelPath == "":
		return errors.New("model path is empty")
	case o.ImageSize <= 0:
		return errors.Errorf("invalid image size %d", o.ImageSize)
	case o.NumClasses <= 0:
		return errors.Errorf("invalid class count %d", o.NumClasses)
	case o.NumAnchors <= 0:
		return errors.Errorf("invalid anchor count %d", o.NumAnchors)
	case o.ConfThreshold < 0 || o.ConfThreshold > 1:
		return errors.Errorf("confidence threshold %v outside [0,1]", o.ConfThreshold)
	case o.IoUThreshold < 0 || o.IoUThreshold > 1:
		return errors.Errorf("iou threshold %v outside [0,1]", o.IoUThreshold)
	}
	return nil
}

func (o Options) layout() outputLayout {
	return outputLayout{imageSize: o.ImageSize, numClasses: o.NumClasses, numAnchors: o.NumAnchors}
}

// Detector runs one ONNX Runtime session. The session's tensors are shared,
// so inference calls are serialized.
type Detector struct {
	mu      sync.Mutex
	opts    Options
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	log     logrus.FieldLogger
}

// New creates a session for opts.ModelPath. InitRuntime must have been called.
func New(opts Options, log logrus.FieldLogger) (*Detector, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, errors.Wrap(err, "model file")
	}

	size := int64(opts.ImageSize)
	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, size, size), make([]float32, 3*size*size))
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}

	outputShape := ort.NewShape(1, int64(4+opts.NumClasses), int64(opts.NumAnchors))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "creating session options")
	}
	defer options.Destroy()
	if opts.Threads > 0 {
		if err := options.SetIntraOpNumThreads(opts.Threads); err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return nil, errors.Wrap(err, "setting thread count")
		}
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "creating session")
	}

	return &Detector{
		opts:    opts,
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		log:     log.WithField("component", "yolo"),
	}, nil
}

// Options returns the configuration the detector was built with.
func (d *Detector) Options() Options {
	return d.opts
}

// Warmup runs one inference on a blank input so a broken model fails at
// startup rather than on the first upload.
func (d *Detector) Warmup() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data := d.input.GetData()
	for i := range data {
		data[i] = 0
	}
	start := time.Now()
	if err := d.session.Run(); err != nil {
		return errors.Wrap(err, "warmup inference")
	}
	d.log.WithField("elapsed", time.Since(start)).Info("Model warmed up")
	return nil
}

// Detect implements detection.Detector. ctx is checked before inference
// starts; the inference itself is not interruptible.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detection.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := prepareInput(img, d.opts.ImageSize)
	output, err := d.run(input)
	if err != nil {
		return nil, err
	}

	dets := decodeOutput(output, d.opts.layout(), img.Bounds().Size(), d.opts.ConfThreshold)
	dets = nonMaxSuppression(dets, d.opts.IoUThreshold)
	for i := range dets {
		dets[i].Box = offset(dets[i].Box, img.Bounds().Min)
	}
	d.log.WithField("detections", len(dets)).Debug("Inference complete")
	return dets, nil
}

func (d *Detector) run(input []float32) ([]float32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.input.GetData(), input)
	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "inference")
	}
	out := make([]float32, d.opts.layout().len())
	copy(out, d.output.GetData())
	return out, nil
}

// Destroy releases the session and its tensors.
func (d *Detector) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
}

// offset moves a box from image-relative to absolute image coordinates.
func offset(b detection.BoundingBox, origin image.Point) detection.BoundingBox {
	dx, dy := float32(origin.X), float32(origin.Y)
	return detection.BoundingBox{X1: b.X1 + dx, Y1: b.Y1 + dy, X2: b.X2 + dx, Y2: b.Y2 + dy}
}

var _ detection.Detector = (*Detector)(nil)
