package lm

import (
	"encoding/binary"
	"sort"

	"lm-go/internal/model/ngram"

	"github.com/bits-and-blooms/bloom/v3"
)

// CountMode selects which n-gram orders are counted during construction
type CountMode int

const (
	// PrefixCounts counts every n-gram window and its (n-1)-prefix
	PrefixCounts CountMode = iota
	// AllOrderCounts counts every suffix of orders 0..n of every window, plus
	// one start-marker-only key per order and sentence
	AllOrderCounts
)

// TrieNode represents a node in the count trie
type TrieNode struct {
	tokenID  uint32               // Token ID at this node
	count    int64                // Count of the key ending at this node
	children map[uint32]*TrieNode // Children indexed by token ID
}

// NewTrieNode creates a new trie node
func NewTrieNode(tokenID uint32) *TrieNode {
	return &TrieNode{
		tokenID:  tokenID,
		children: make(map[uint32]*TrieNode),
	}
}

// CountStore maps n-gram keys of order 0..n to counts. The root holds the
// count of the empty key. It is built once and never mutated afterwards.
type CountStore struct {
	n           int
	mode        CountMode
	root        *TrieNode
	tokenToID   map[string]uint32
	idToToken   []string
	nodes       int64
	bloomFilter *bloom.BloomFilter // Negative pre-check for absent keys
}

// NewCountStore counts the given sentences for an n-gram model of order n
func NewCountStore(n int, mode CountMode, sents []ngram.Sentence) *CountStore {
	store := newEmptyCountStore(n, mode)

	for _, sent := range sents {
		tagged := sent.Tag(n)
		switch mode {
		case AllOrderCounts:
			for end := n - 1; end < len(tagged); end++ {
				window := tagged[end-n+1 : end+1]
				for k := 0; k <= n; k++ {
					store.increment(window[n-k:])
				}
			}
			for k := 1; k < n; k++ {
				store.increment(tagged[:k])
			}
		default:
			for i := 0; i+n <= len(tagged); i++ {
				window := tagged[i : i+n]
				store.increment(window)
				store.increment(window[:n-1])
			}
		}
	}

	store.buildBloom()
	return store
}

func newEmptyCountStore(n int, mode CountMode) *CountStore {
	return &CountStore{
		n:         n,
		mode:      mode,
		root:      NewTrieNode(0), // Root has ID 0 (sentinel)
		tokenToID: make(map[string]uint32),
		idToToken: []string{"<ROOT>"}, // ID 0 is reserved for root
		nodes:     1,
	}
}

// internToken converts a token string to its ID, creating a new ID if needed
func (s *CountStore) internToken(token string) uint32 {
	if id, exists := s.tokenToID[token]; exists {
		return id
	}
	id := uint32(len(s.idToToken))
	s.tokenToID[token] = id
	s.idToToken = append(s.idToToken, token)
	return id
}

// increment adds one to the count of the key, creating the path if needed
func (s *CountStore) increment(tokens []string) {
	current := s.root
	for _, token := range tokens {
		id := s.internToken(token)
		child, exists := current.children[id]
		if !exists {
			child = NewTrieNode(id)
			current.children[id] = child
			s.nodes++
		}
		current = child
	}
	current.count++
}

// buildBloom indexes every stored key in the bloom filter
func (s *CountStore) buildBloom() {
	expected := uint(s.nodes)
	if expected < 16 {
		expected = 16
	}
	s.bloomFilter = bloom.NewWithEstimates(expected, 0.01)

	var walk func(node *TrieNode, path []uint32)
	walk = func(node *TrieNode, path []uint32) {
		if len(path) > 0 {
			s.bloomFilter.Add(idsToKey(path))
		}
		for id, child := range node.children {
			walk(child, append(path, id))
		}
	}
	walk(s.root, make([]uint32, 0, s.n))
}

// idsToKey creates the bloom filter key for a sequence of token IDs
func idsToKey(ids []uint32) []byte {
	key := make([]byte, 4*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint32(key[4*i:], id)
	}
	return key
}

// lookup returns the node for a key, or nil if the key was never stored
func (s *CountStore) lookup(tokens []string) *TrieNode {
	if len(tokens) == 0 {
		return s.root
	}

	ids := make([]uint32, len(tokens))
	for i, token := range tokens {
		id, exists := s.tokenToID[token]
		if !exists {
			return nil // Token never seen
		}
		ids[i] = id
	}

	if s.bloomFilter != nil && !s.bloomFilter.Test(idsToKey(ids)) {
		return nil
	}

	current := s.root
	for _, id := range ids {
		child, exists := current.children[id]
		if !exists {
			return nil
		}
		current = child
	}
	return current
}

// Count returns the count of a key of any order 0..n. Absent keys count as zero.
func (s *CountStore) Count(tokens []string) int64 {
	node := s.lookup(tokens)
	if node == nil {
		return 0
	}
	return node.count
}

// N returns the order of the model the store was built for
func (s *CountStore) N() int {
	return s.n
}

// Mode returns the counting mode
func (s *CountStore) Mode() CountMode {
	return s.mode
}

// Total returns the count of the empty key
func (s *CountStore) Total() int64 {
	return s.root.count
}

// Continuations returns the tokens t other than the start marker with
// count(context+t) > 0, in ascending order
func (s *CountStore) Continuations(context []string) []string {
	node := s.lookup(context)
	if node == nil {
		return nil
	}
	return s.childTokens(node)
}

// childTokens lists the continuations of a node. The start marker is never
// predicted, so the extra start-marker counts are not continuations.
func (s *CountStore) childTokens(node *TrieNode) []string {
	tokens := make([]string, 0, len(node.children))
	for id, child := range node.children {
		if s.isContinuation(id, child) {
			tokens = append(tokens, s.idToToken[id])
		}
	}
	sort.Strings(tokens)
	return tokens
}

func (s *CountStore) isContinuation(id uint32, child *TrieNode) bool {
	return child.count > 0 && s.idToToken[id] != ngram.StartTag
}

// Contexts returns every stored key of the given length that has at least one
// continuation, sorted by key
func (s *CountStore) Contexts(length int) []ngram.NGram {
	var results []ngram.NGram

	var collect func(node *TrieNode, path []string)
	collect = func(node *TrieNode, path []string) {
		if len(path) == length {
			for id, child := range node.children {
				if s.isContinuation(id, child) {
					results = append(results, append(ngram.NGram{}, path...))
					break
				}
			}
			return
		}
		for id, child := range node.children {
			collect(child, append(path, s.idToToken[id]))
		}
	}
	collect(s.root, make([]string, 0, length))

	sort.Slice(results, func(i, j int) bool {
		return results[i].Key() < results[j].Key()
	})
	return results
}

// Vocabulary returns the distinct training tokens, excluding the sentence markers
func (s *CountStore) Vocabulary() []string {
	vocab := make([]string, 0, len(s.tokenToID))
	for token := range s.tokenToID {
		if !ngram.IsReserved(token) {
			vocab = append(vocab, token)
		}
	}
	sort.Strings(vocab)
	return vocab
}

// VocabularySize returns the number of distinct tokens, excluding the sentence markers
func (s *CountStore) VocabularySize() int {
	size := len(s.tokenToID)
	for _, reserved := range []string{ngram.StartTag, ngram.EndTag} {
		if _, ok := s.tokenToID[reserved]; ok {
			size--
		}
	}
	return size
}

// Stats returns statistics about the store
func (s *CountStore) Stats() StoreStats {
	return StoreStats{
		N:              s.n,
		VocabularySize: s.VocabularySize(),
		Keys:           s.nodes - 1,
		TotalCount:     s.root.count,
		AllOrders:      s.mode == AllOrderCounts,
	}
}

// StoreStats contains statistics about a count store
type StoreStats struct {
	N              int   `json:"n"`
	VocabularySize int   `json:"vocabulary_size"`
	Keys           int64 `json:"keys"`
	TotalCount     int64 `json:"total_count"`
	AllOrders      bool  `json:"all_orders"`
}
