// Package census builds the eligibility sets polls are gated on. A census is
// a Merkle tree of voter keys; its root is what CreatePoll records, and a
// membership proof against that root is the private input of the vote proof
// circuit. Census construction is tooling around the core: the poll manager
// only ever consumes the exported 32-byte root.
package census

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vocdoni/arbo"
	"github.com/vocdoni/zkpoll/types"
	"github.com/vocdoni/davinci-node/db"
	"github.com/vocdoni/davinci-node/db/prefixeddb"
)

const (
	censusTreePrefix      = "ct_"
	censusReferencePrefix = "cr_"

	// maxLevels bounds the tree depth, which in turn bounds the key length
	// to maxLevels/8 bytes.
	maxLevels = 160
)

// hashFunction is the tree hash. Poseidon keeps leaves and nodes inside the
// BN254 scalar field, matching the proving system of the vote circuit.
var hashFunction = arbo.HashFunctionPoseidon

var (
	// ErrCensusNotFound is returned when the census id is unknown.
	ErrCensusNotFound = fmt.Errorf("census not found")
	// ErrCensusAlreadyExists is returned by New for a duplicate census id.
	ErrCensusAlreadyExists = fmt.Errorf("census already exists")
	// ErrKeyNotFound is returned when a key is not in the census tree.
	ErrKeyNotFound = fmt.Errorf("key not found in census")
)

// reference is the persisted metadata of a census tree.
type reference struct {
	ID        uuid.UUID
	MaxLevels int
	HashType  string
	CreatedAt time.Time
}

// CensusDB is a persistent collection of census trees sharing one key-value
// database, each census under its own key prefix.
type CensusDB struct {
	mu     sync.RWMutex
	db     db.Database
	loaded map[uuid.UUID]*Census
}

// NewCensusDB creates a CensusDB on the given database.
func NewCensusDB(database db.Database) *CensusDB {
	return &CensusDB{
		db:     database,
		loaded: make(map[uuid.UUID]*Census),
	}
}

// New creates an empty census with the given id. It returns
// ErrCensusAlreadyExists if the id is already in use.
func (c *CensusDB) New(censusID uuid.UUID) (*Census, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.loaded[censusID]; exists {
		return nil, ErrCensusAlreadyExists
	}
	if _, err := c.db.Get(referenceKey(censusID)); err == nil {
		return nil, ErrCensusAlreadyExists
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return nil, err
	}

	census, err := c.openTree(censusID)
	if err != nil {
		return nil, err
	}
	if err := c.writeReference(&reference{
		ID:        censusID,
		MaxLevels: maxLevels,
		HashType:  string(hashFunction.Type()),
		CreatedAt: time.Now(),
	}); err != nil {
		return nil, err
	}
	c.loaded[censusID] = census
	return census, nil
}

// Load returns the census with the given id, opening its tree from the
// database if it is not already in memory.
func (c *CensusDB) Load(censusID uuid.UUID) (*Census, error) {
	c.mu.RLock()
	if census, exists := c.loaded[censusID]; exists {
		c.mu.RUnlock()
		return census, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if census, exists := c.loaded[censusID]; exists {
		return census, nil
	}

	data, err := c.db.Get(referenceKey(censusID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrCensusNotFound
		}
		return nil, err
	}
	var ref reference
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ref); err != nil {
		return nil, fmt.Errorf("cannot decode census reference: %w", err)
	}
	census, err := c.openTree(censusID)
	if err != nil {
		return nil, err
	}
	c.loaded[censusID] = census
	return census, nil
}

// Exists reports whether a census with the given id exists.
func (c *CensusDB) Exists(censusID uuid.UUID) bool {
	c.mu.RLock()
	_, exists := c.loaded[censusID]
	c.mu.RUnlock()
	if exists {
		return true
	}
	_, err := c.db.Get(referenceKey(censusID))
	return err == nil
}

func (c *CensusDB) openTree(censusID uuid.UUID) (*Census, error) {
	tree, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(c.db, treePrefix(censusID)),
		MaxLevels:    maxLevels,
		HashFunction: hashFunction,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open census tree: %w", err)
	}
	return &Census{ID: censusID, tree: tree}, nil
}

func (c *CensusDB) writeReference(ref *reference) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ref); err != nil {
		return err
	}
	wtx := c.db.WriteTx()
	defer wtx.Discard()
	if err := wtx.Set(referenceKey(ref.ID), buf.Bytes()); err != nil {
		return err
	}
	return wtx.Commit()
}

func referenceKey(censusID uuid.UUID) []byte {
	return append([]byte(censusReferencePrefix), censusID[:]...)
}

func treePrefix(censusID uuid.UUID) []byte {
	return append([]byte(censusTreePrefix), censusID[:]...)
}

// Census is one eligibility tree. Voter keys are hashed and truncated to the
// tree key length before insertion, so arbitrary-length identifiers can be
// used as keys.
type Census struct {
	ID   uuid.UUID
	mu   sync.Mutex
	tree *arbo.Tree
}

// HashKey derives the tree key for a voter identifier. It hashes the
// identifier with the tree hash function and truncates the digest to the key
// length imposed by the tree depth.
func HashKey(voterKey []byte) ([]byte, error) {
	hash, err := hashFunction.Hash(voterKey)
	if err != nil {
		return nil, fmt.Errorf("cannot hash voter key: %w", err)
	}
	keyLen := maxLevels / 8
	if len(hash) < keyLen {
		return nil, fmt.Errorf("hash output shorter than tree key length")
	}
	return hash[:keyLen], nil
}

// Add inserts one voter key with its value (typically a weight encoding;
// callers gating simple membership use a one-byte value).
func (c *Census) Add(voterKey, value []byte) error {
	key, err := HashKey(voterKey)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Add(key, value)
}

// AddBatch inserts many voter keys at once. It returns an error if any key
// cannot be added; the tree may be partially updated in that case.
func (c *Census) AddBatch(voterKeys, values [][]byte) error {
	if len(voterKeys) != len(values) {
		return fmt.Errorf("keys and values length mismatch")
	}
	keys := make([][]byte, 0, len(voterKeys))
	for _, vk := range voterKeys {
		key, err := HashKey(vk)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	invalids, err := c.tree.AddBatch(keys, values)
	if err != nil {
		return err
	}
	if len(invalids) > 0 {
		return fmt.Errorf("%d keys could not be added to the census", len(invalids))
	}
	return nil
}

// Root returns the current tree root, left-padded to the 32 bytes CreatePoll
// expects.
func (c *Census) Root() (types.HexBytes, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	root, err := c.tree.Root()
	if err != nil {
		return nil, err
	}
	return types.HexBytes(root).LeftPad(types.MerkleRootLength), nil
}

// Size returns the number of leaves in the census.
func (c *Census) Size() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.GetNLeafs()
}

// Proof is a census membership proof: the proven key and value, the root it
// verifies against and the packed sibling path.
type Proof struct {
	Key      types.HexBytes `json:"key"`
	Value    types.HexBytes `json:"value"`
	Root     types.HexBytes `json:"root"`
	Siblings types.HexBytes `json:"siblings"`
}

// GenProof generates a membership proof for the voter key against the current
// root.
func (c *Census) GenProof(voterKey []byte) (*Proof, error) {
	key, err := HashKey(voterKey)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	root, err := c.tree.Root()
	if err != nil {
		return nil, err
	}
	_, value, siblings, exists, err := c.tree.GenProof(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrKeyNotFound
	}
	return &Proof{
		Key:      key,
		Value:    value,
		Root:     types.HexBytes(root).LeftPad(types.MerkleRootLength),
		Siblings: siblings,
	}, nil
}

// VerifyProof checks a membership proof. The root may carry the left padding
// added by Root; it is stripped back to the hash length before checking.
func VerifyProof(proof *Proof) (bool, error) {
	if proof == nil {
		return false, fmt.Errorf("nil proof")
	}
	root := []byte(proof.Root)
	hashLen := hashFunction.Len()
	if len(root) > hashLen {
		pad := root[:len(root)-hashLen]
		for _, b := range pad {
			if b != 0 {
				return false, nil
			}
		}
		root = root[len(root)-hashLen:]
	}
	return arbo.CheckProof(hashFunction, proof.Key, proof.Value, root, proof.Siblings)
}
