package extract

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/TrellixVulnTeam/bert-fine-tuned-gain-VCS0/bertft/align"

	_ "github.com/tursodatabase/go-libsql"
)

// sentenceIndexKey is the reserved row holding the sentence -> id mapping.
const sentenceIndexKey = "sentence_to_index"

// Store persists word-level embeddings keyed by example id. The data column
// holds the float32 tensor little-endian, row-major over (layer, word, dim);
// layers records the requested layer indices as a JSON array so reads come
// back with the exact shape that was written.
type Store struct {
	db *sql.DB
}

// The libsql driver executes a single statement per Exec call, so the schema
// statements are kept separate and applied in order.
var storeSchema = []string{
	`CREATE TABLE IF NOT EXISTS embeddings (
	id     TEXT PRIMARY KEY,
	layers TEXT NOT NULL,
	words  INTEGER NOT NULL,
	hidden INTEGER NOT NULL,
	data   BLOB NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`,
}

// OpenStore opens (and if needed initializes) an embedding store.
func OpenStore(dsn string) (*Store, error) {
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open embedding store: %w", err)
	}
	for _, stmt := range storeSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialize embedding store: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Put writes one example's layered embedding.
func (s *Store) Put(id string, emb *align.Layered) error {
	var buf bytes.Buffer
	for _, words := range emb.Data {
		for _, vec := range words {
			for _, x := range vec {
				var b [4]byte
				binary.LittleEndian.PutUint32(b[:], math.Float32bits(x))
				buf.Write(b[:])
			}
		}
	}
	layerIDs, err := json.Marshal(emb.Layers)
	if err != nil {
		return fmt.Errorf("marshal layer indices: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO embeddings (id, layers, words, hidden, data) VALUES (?, ?, ?, ?, ?)`,
		id, string(layerIDs), emb.Words, emb.Hidden, buf.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("put embedding %s: %w", id, err)
	}
	return nil
}

// Get reads one example's embedding back. Shape information comes from the
// stored row, so callers get (layers, words, hidden) exactly as written.
func (s *Store) Get(id string) (*align.Layered, error) {
	var layerIDs string
	var words, hidden int
	var data []byte
	err := s.db.QueryRow(
		`SELECT layers, words, hidden, data FROM embeddings WHERE id = ?`, id,
	).Scan(&layerIDs, &words, &hidden, &data)
	if err != nil {
		return nil, fmt.Errorf("get embedding %s: %w", id, err)
	}
	var indices []int
	if err := json.Unmarshal([]byte(layerIDs), &indices); err != nil {
		return nil, fmt.Errorf("embedding %s: layer indices: %w", id, err)
	}
	layers := len(indices)
	if len(data) != layers*words*hidden*4 {
		return nil, fmt.Errorf("embedding %s: %d bytes for shape (%d,%d,%d)", id, len(data), layers, words, hidden)
	}
	out := &align.Layered{
		Layers: indices,
		Words:  words,
		Hidden: hidden,
		Data:   make([][][]float32, layers),
	}
	off := 0
	for l := 0; l < layers; l++ {
		rows := make([][]float32, words)
		for w := 0; w < words; w++ {
			vec := make([]float32, hidden)
			for d := 0; d < hidden; d++ {
				vec[d] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
				off += 4
			}
			rows[w] = vec
		}
		out.Data[l] = rows
	}
	return out, nil
}

// PutSentenceIndex stores the serialized sentence -> id mapping under the
// reserved key.
func (s *Store) PutSentenceIndex(index map[string]string) error {
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshal sentence index: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`,
		sentenceIndexKey, string(data),
	)
	if err != nil {
		return fmt.Errorf("put sentence index: %w", err)
	}
	return nil
}

// SentenceIndex reads the mapping back; an absent row yields an empty map.
func (s *Store) SentenceIndex() (map[string]string, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, sentenceIndexKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sentence index: %w", err)
	}
	index := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &index); err != nil {
		return nil, fmt.Errorf("unmarshal sentence index: %w", err)
	}
	return index, nil
}
