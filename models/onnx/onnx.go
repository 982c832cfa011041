// Package onnx runs a token classification model exported to ONNX, using the onnxruntime
// shared library.
//
// The model must take "input_ids" and "attention_mask" (and optionally "token_type_ids") int64
// inputs shaped [batch, sequence] and return float32 "logits" shaped [batch, sequence, labels],
// as exported by the HuggingFace optimum exporter.
package onnx

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/piitag/piitag/hub"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"k8s.io/klog/v2"
)

// SharedLibraryEnv is the environment variable naming the onnxruntime shared library.
const SharedLibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// ModelFiles are the paths searched, in order, for the ONNX model in a repo.
var ModelFiles = []string{"model.onnx", "onnx/model.onnx", "model_quantized.onnx", "onnx/model_quantized.onnx"}

const (
	inputIDsName      = "input_ids"
	attentionMaskName = "attention_mask"
	tokenTypeIDsName  = "token_type_ids"
	logitsName        = "logits"
)

var initMu sync.Mutex

// Session is a loaded model. Runs are serialized, so it is safe for concurrent use.
type Session struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	numLabels  int

	mu sync.Mutex
}

// Load finds the ONNX model of the repo (see ModelFiles) and creates a Session for it.
func Load(ctx context.Context, repo *hub.Repo, numLabels int) (*Session, error) {
	for _, name := range ModelFiles {
		if !repo.HasFileContext(ctx, name) {
			continue
		}
		path, err := repo.DownloadFileContext(ctx, name)
		if err != nil {
			return nil, err
		}
		return New(path, numLabels)
	}
	return nil, errors.Errorf("no ONNX model (%s) found in %s", strings.Join(ModelFiles, ", "), repo)
}

// New creates a Session for the model at modelPath, predicting numLabels labels per token.
func New(modelPath string, numLabels int) (*Session, error) {
	if numLabels <= 0 {
		return nil, errors.Errorf("invalid number of labels %d", numLabels)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, errors.Wrapf(err, "model file missing at %q", modelPath)
	}
	if err := initialize(filepath.Dir(modelPath)); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read inputs and outputs of %q", modelPath)
	}
	inputNames := []string{inputIDsName, attentionMaskName}
	var available []string
	for _, info := range inputs {
		available = append(available, info.Name)
	}
	for _, name := range inputNames {
		if !slices.Contains(available, name) {
			return nil, errors.Errorf("model %q has no input %q (inputs: %v)", modelPath, name, available)
		}
	}
	if slices.Contains(available, tokenTypeIDsName) {
		inputNames = append(inputNames, tokenTypeIDsName)
	}
	if !slices.ContainsFunc(outputs, func(info ort.InputOutputInfo) bool { return info.Name == logitsName }) {
		return nil, errors.Errorf("model %q has no %q output", modelPath, logitsName)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{logitsName}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create onnx session for %q", modelPath)
	}
	klog.V(1).Infof("loaded ONNX model %q, inputs %v", modelPath, inputNames)
	return &Session{session: session, inputNames: inputNames, numLabels: numLabels}, nil
}

// initialize points onnxruntime to its shared library and initializes its environment once.
func initialize(modelDir string) error {
	initMu.Lock()
	defer initMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	libPath := resolveSharedLibraryPath(modelDir)
	if libPath == "" {
		return errors.Errorf("onnxruntime shared library not found; set %s or install the runtime", SharedLibraryEnv)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrapf(err, "failed to initialize onnxruntime from %q", libPath)
	}
	return nil
}

// resolveSharedLibraryPath returns the onnxruntime shared library named by SharedLibraryEnv, or
// the first one found in the model directory or the usual system locations.
func resolveSharedLibraryPath(modelDir string) string {
	if env := strings.TrimSpace(os.Getenv(SharedLibraryEnv)); env != "" {
		return env
	}
	names := []string{
		"libonnxruntime.so",
		"onnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

// NumLabels returns the number of labels predicted per token.
func (s *Session) NumLabels() int { return s.numLabels }

// Logits runs the model over a padded batch and returns logits shaped
// [batch][sequence][labels].
func (s *Session) Logits(ctx context.Context, inputIDs, attentionMask [][]int) ([][][]float32, error) {
	batchSize, seqLen, err := batchShape(inputIDs, attentionMask)
	if err != nil {
		return nil, err
	}
	if batchSize == 0 || seqLen == 0 {
		return make([][][]float32, batchSize), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shape := ort.NewShape(int64(batchSize), int64(seqLen))
	values := map[string][]int64{
		inputIDsName:      flatten(inputIDs),
		attentionMaskName: flatten(attentionMask),
		tokenTypeIDsName:  make([]int64, batchSize*seqLen),
	}
	inputs := make([]ort.Value, 0, len(s.inputNames))
	defer func() {
		for _, v := range inputs {
			_ = v.Destroy()
		}
	}()
	for _, name := range s.inputNames {
		tensor, err := ort.NewTensor(shape, values[name])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create %s tensor", name)
		}
		inputs = append(inputs, tensor)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(batchSize), int64(seqLen), int64(s.numLabels)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate logits tensor")
	}
	defer func() { _ = output.Destroy() }()

	s.mu.Lock()
	err = s.session.Run(inputs, []ort.Value{output})
	s.mu.Unlock()
	if err != nil {
		return nil, errors.Wrap(err, "onnx run failed")
	}
	return unflatten(output.GetData(), batchSize, seqLen, s.numLabels), nil
}

// Close releases the onnxruntime session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return errors.Wrap(err, "failed to destroy onnx session")
}

// batchShape checks the batch is rectangular and returns its dimensions.
func batchShape(inputIDs, attentionMask [][]int) (batchSize, seqLen int, err error) {
	if len(inputIDs) != len(attentionMask) {
		return 0, 0, errors.Errorf("batch has %d input rows but %d attention mask rows", len(inputIDs), len(attentionMask))
	}
	if len(inputIDs) == 0 {
		return 0, 0, nil
	}
	seqLen = len(inputIDs[0])
	for ii := range inputIDs {
		if len(inputIDs[ii]) != seqLen || len(attentionMask[ii]) != seqLen {
			return 0, 0, errors.Errorf("batch row %d has length %d/%d, want %d: batches must be padded",
				ii, len(inputIDs[ii]), len(attentionMask[ii]), seqLen)
		}
	}
	return len(inputIDs), seqLen, nil
}

func flatten(rows [][]int) []int64 {
	var flat []int64
	for _, row := range rows {
		for _, v := range row {
			flat = append(flat, int64(v))
		}
	}
	return flat
}

func unflatten(data []float32, batchSize, seqLen, numLabels int) [][][]float32 {
	out := make([][][]float32, batchSize)
	for b := range out {
		out[b] = make([][]float32, seqLen)
		for s := range out[b] {
			start := (b*seqLen + s) * numLabels
			out[b][s] = slices.Clone(data[start : start+numLabels])
		}
	}
	return out
}
