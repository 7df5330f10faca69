package onnx

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/seu-repo/voz-visible/internal/domain"
)

// Classifier runs the exported model through onnxruntime. The session and its
// tensors are reused, so Run calls are serialized.
type Classifier struct {
	mu           sync.Mutex
	desc         *Descriptor
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	log          *zap.Logger
}

// NewClassifier initializes the runtime environment and loads the model.
// libraryPath may be empty to use the platform default.
func NewClassifier(desc *Descriptor, libraryPath string, log *zap.Logger) (*Classifier, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputShape := ort.NewShape(1, int64(desc.NumFeatures))
	outputShape := ort.NewShape(1, int64(len(desc.Classes)))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(desc.ModelPath,
		[]string{desc.InputName}, []string{desc.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	log.Info("Sign classifier loaded",
		zap.String("model", desc.ModelPath),
		zap.Int("classes", len(desc.Classes)),
		zap.Bool("scaler", desc.Scaler != nil),
	)

	return &Classifier{
		desc:         desc,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		log:          log,
	}, nil
}

type inferResult struct {
	scores []float32
	err    error
}

// Infer normalizes vec and returns one score per class. When ctx expires the
// call returns early; the in-flight run still completes before the next one
// starts.
func (c *Classifier) Infer(ctx context.Context, vec *domain.FeatureVector) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan inferResult, 1)
	go func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.session == nil {
			done <- inferResult{err: domain.ErrClassifierUnavailable}
			return
		}

		c.desc.Normalize(c.inputTensor.GetData(), vec)
		if err := c.session.Run(); err != nil {
			done <- inferResult{err: fmt.Errorf("inference failed: %w", err)}
			return
		}

		out := c.outputTensor.GetData()
		scores := make([]float32, len(out))
		copy(scores, out)
		done <- inferResult{scores: scores}
	}()

	select {
	case res := <-done:
		return res.scores, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("inference timed out: %w", ctx.Err())
	}
}

func (c *Classifier) Vocabulary() []string {
	return c.desc.Classes
}

func (c *Classifier) NumFeatures() int {
	return c.desc.NumFeatures
}

func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inputTensor != nil {
		c.inputTensor.Destroy()
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
		c.outputTensor = nil
	}
	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	return ort.DestroyEnvironment()
}
