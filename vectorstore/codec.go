package vectorstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Encode writes entries as one JSON object in the given order.
func Encode(w io.Writer, entries []Entry, indent bool) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.ID)
		if err != nil {
			return err
		}
		metadata := e.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		vector := e.Vector
		if vector == nil {
			vector = []float32{}
		}
		value, err := json.Marshal([2]any{vector, metadata})
		if err != nil {
			return fmt.Errorf("encode entry %q: %w", e.ID, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')

	out := buf.Bytes()
	if indent {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, out, "", "    "); err != nil {
			return err
		}
		out = pretty.Bytes()
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Decode reads a document written by Encode. Entries are returned in
// document order; a repeated id keeps its first position and its last value.
func Decode(r io.Reader) ([]Entry, error) {
	dec := json.NewDecoder(bufio.NewReader(r))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: top level must be a JSON object", ErrInvalidDocument)
	}

	var entries []Entry
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		id, _ := tok.(string)

		var pair []json.RawMessage
		if err := dec.Decode(&pair); err != nil {
			return nil, fmt.Errorf("%w: entry %q: expected [vector, metadata]: %v", ErrInvalidDocument, id, err)
		}
		entry, err := decodeEntry(id, pair)
		if err != nil {
			return nil, err
		}

		if i, ok := index[id]; ok {
			entries[i] = entry
			continue
		}
		index[id] = len(entries)
		entries = append(entries, entry)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return entries, nil
}

func decodeEntry(id string, pair []json.RawMessage) (Entry, error) {
	if len(pair) != 2 {
		return Entry{}, fmt.Errorf("%w: entry %q: expected [vector, metadata], got %d elements", ErrInvalidDocument, id, len(pair))
	}

	var vector []float32
	if err := json.Unmarshal(pair[0], &vector); err != nil || vector == nil {
		return Entry{}, fmt.Errorf("%w: entry %q: vector must be an array of numbers", ErrInvalidDocument, id)
	}

	var metadata map[string]any
	if err := json.Unmarshal(pair[1], &metadata); err != nil || metadata == nil {
		return Entry{}, fmt.Errorf("%w: entry %q: metadata must be an object", ErrInvalidDocument, id)
	}

	return Entry{ID: id, Vector: vector, Metadata: metadata}, nil
}

// ReadFile decodes the document at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// WriteFile encodes entries to path, replacing it atomically.
func WriteFile(path string, entries []Entry, indent bool) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := Encode(w, entries, indent); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
