package lm

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	formatVersion = "1.0"
	modelSuffix   = "_lm.gob"
)

// ModelMetadata describes how and when a model was trained
type ModelMetadata struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Language        string       `json:"language"`
	Sentences       int          `json:"sentences"`
	Tokens          int          `json:"tokens"`
	CreatedAt       time.Time    `json:"created_at"`
	TrainingEntropy EntropyStats `json:"training_entropy"`
}

// SerializableModel is the plain-data form of a fitted model
type SerializableModel struct {
	Version  string
	Kind     Kind
	N        int
	Mode     CountMode
	Gamma    float64
	Beta     float64
	AddOne   bool
	Metadata ModelMetadata
	Trace    []SearchStep

	IDToToken []string               // Token ID to string mapping
	Nodes     []SerializableTrieNode // Flattened count trie, root first

	Continuations map[string][]string // Back-off A(context)
	Denominators  map[string]float64  // Back-off denominators
}

// SerializableTrieNode represents a serialized trie node
type SerializableTrieNode struct {
	ID          int            // Node ID in serialized form
	TokenID     uint32         // Token ID
	Count       int64          // Count of the key ending here
	ChildrenIDs map[uint32]int // TokenID -> child node ID
}

// ToSerializable captures every piece of state of a fitted model
func ToSerializable(m ConditionalModel, meta ModelMetadata) (*SerializableModel, error) {
	counts := m.Counts()
	target := &SerializableModel{
		Version:   formatVersion,
		Kind:      m.Kind(),
		N:         m.N(),
		Mode:      counts.mode,
		Metadata:  meta,
		IDToToken: counts.idToToken,
		Nodes:     flattenTrie(counts.root),
	}

	switch typed := m.(type) {
	case *UnsmoothedModel:
	case *AddOneModel:
		target.AddOne = true
	case *InterpolatedModel:
		target.Gamma = typed.gamma
		target.AddOne = typed.addOne
		target.Trace = typed.trace
	case *BackOffModel:
		target.Beta = typed.beta
		target.AddOne = typed.addOne
		target.Trace = typed.trace
		target.Continuations = typed.cache.continuations
		target.Denominators = typed.cache.denominators
	default:
		return nil, fmt.Errorf("unsupported model type %T", m)
	}
	return target, nil
}

// FromSerializable rebuilds a fitted model without recounting or re-fitting
func FromSerializable(src *SerializableModel) (ConditionalModel, error) {
	if src.N < 1 {
		return nil, fmt.Errorf("invalid model order %d", src.N)
	}

	counts := newEmptyCountStore(src.N, src.Mode)
	counts.idToToken = src.IDToToken
	for id, token := range src.IDToToken {
		if id > 0 {
			counts.tokenToID[token] = uint32(id)
		}
	}
	root, nodes := reconstructTrie(src.Nodes)
	counts.root = root
	counts.nodes = nodes
	counts.buildBloom()

	switch src.Kind {
	case KindUnsmoothed:
		return &UnsmoothedModel{n: src.N, counts: counts}, nil
	case KindAddOne:
		return &AddOneModel{n: src.N, counts: counts, v: counts.VocabularySize()}, nil
	case KindInterpolated:
		return &InterpolatedModel{
			n:      src.N,
			counts: counts,
			v:      counts.VocabularySize(),
			gamma:  src.Gamma,
			addOne: src.AddOne,
			trace:  src.Trace,
		}, nil
	case KindBackOff:
		m := &BackOffModel{
			n:      src.N,
			counts: counts,
			v:      counts.VocabularySize(),
			addOne: src.AddOne,
			trace:  src.Trace,
		}
		if src.Continuations == nil {
			m.setBeta(src.Beta)
		} else {
			m.beta = src.Beta
			m.cache = backOffCache{continuations: src.Continuations, denominators: src.Denominators}
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown model kind: %s", src.Kind)
	}
}

// Trace returns the hyperparameter search trace of a model, if any
func Trace(m ConditionalModel) []SearchStep {
	switch typed := m.(type) {
	case *InterpolatedModel:
		return typed.Trace()
	case *BackOffModel:
		return typed.Trace()
	}
	return nil
}

// flattenTrie converts a trie to a flat array for serialization
func flattenTrie(root *TrieNode) []SerializableTrieNode {
	var nodes []SerializableTrieNode
	nextID := 0

	var flatten func(*TrieNode) int
	flatten = func(node *TrieNode) int {
		nodeID := nextID
		nextID++
		nodes = append(nodes, SerializableTrieNode{
			ID:          nodeID,
			TokenID:     node.tokenID,
			Count:       node.count,
			ChildrenIDs: make(map[uint32]int, len(node.children)),
		})
		for tokenID, child := range node.children {
			childID := flatten(child)
			nodes[nodeID].ChildrenIDs[tokenID] = childID
		}
		return nodeID
	}

	flatten(root)
	return nodes
}

// reconstructTrie rebuilds a trie from serialized nodes and returns the root
// together with the number of nodes
func reconstructTrie(nodes []SerializableTrieNode) (*TrieNode, int64) {
	if len(nodes) == 0 {
		return NewTrieNode(0), 1
	}

	nodeMap := make(map[int]*TrieNode, len(nodes))
	for _, sNode := range nodes {
		node := NewTrieNode(sNode.TokenID)
		node.count = sNode.Count
		nodeMap[sNode.ID] = node
	}
	for _, sNode := range nodes {
		node := nodeMap[sNode.ID]
		for tokenID, childID := range sNode.ChildrenIDs {
			if child, exists := nodeMap[childID]; exists {
				node.children[tokenID] = child
			}
		}
	}
	return nodeMap[0], int64(len(nodes))
}

// SaveToFile writes a fitted model to path using gob encoding
func SaveToFile(path string, m ConditionalModel, meta ModelMetadata) error {
	model, err := ToSerializable(m, meta)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(model); err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return nil
}

// LoadFromFile reads a model written by SaveToFile
func LoadFromFile(path string) (ConditionalModel, *ModelMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer file.Close()

	var model SerializableModel
	if err := gob.NewDecoder(file).Decode(&model); err != nil {
		return nil, nil, fmt.Errorf("failed to decode model: %w", err)
	}

	m, err := FromSerializable(&model)
	if err != nil {
		return nil, nil, err
	}
	return m, &model.Metadata, nil
}

// ModelPersistence handles saving and loading named models in a directory
type ModelPersistence struct {
	outputDir string
	logger    *zap.Logger
}

// NewModelPersistence creates a new persistence manager
func NewModelPersistence(outputDir string, logger *zap.Logger) (*ModelPersistence, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &ModelPersistence{
		outputDir: outputDir,
		logger:    logger,
	}, nil
}

// GetModelPath returns the file path for a named model
func (p *ModelPersistence) GetModelPath(name string) string {
	return filepath.Join(p.outputDir, name+modelSuffix)
}

// SaveModel saves a named model to disk
func (p *ModelPersistence) SaveModel(m ConditionalModel, meta ModelMetadata) error {
	modelPath := p.GetModelPath(meta.Name)
	if err := SaveToFile(modelPath, m, meta); err != nil {
		return fmt.Errorf("failed to save model %s: %w", meta.Name, err)
	}

	p.logger.Info("Saved language model",
		zap.String("name", meta.Name),
		zap.String("path", modelPath),
		zap.String("kind", string(m.Kind())),
		zap.Int("n", m.N()),
		zap.Int("tokens", meta.Tokens))
	return nil
}

// LoadModel loads a named model from disk
func (p *ModelPersistence) LoadModel(name string) (ConditionalModel, *ModelMetadata, error) {
	modelPath := p.GetModelPath(name)
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("no saved model found: %s", name)
	}

	m, meta, err := LoadFromFile(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load model %s: %w", name, err)
	}

	p.logger.Info("Loaded language model",
		zap.String("name", name),
		zap.String("path", modelPath),
		zap.String("kind", string(m.Kind())),
		zap.Int("n", m.N()))
	return m, meta, nil
}

// ModelExists checks if a saved model exists
func (p *ModelPersistence) ModelExists(name string) bool {
	_, err := os.Stat(p.GetModelPath(name))
	return err == nil
}

// DeleteModel deletes a saved model
func (p *ModelPersistence) DeleteModel(name string) error {
	if err := os.Remove(p.GetModelPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	p.logger.Info("Deleted language model", zap.String("name", name))
	return nil
}

// ListModels returns the names of every saved model
func (p *ModelPersistence) ListModels() ([]string, error) {
	entries, err := os.ReadDir(p.outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read model directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), modelSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), modelSuffix))
	}
	sort.Strings(names)
	return names, nil
}
