package history

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []Entry {
	return []Entry{
		{Who: "You", Text: "Hello"},
		{Who: "Agent", Text: "Hi there"},
		{Who: "You", Text: "move screenshots to /school"},
		{Who: "Agent", Text: "✅ Moved 3 images", Details: json.RawMessage(`{"ok":true,"moved":3}`)},
	}
}

func openSQLite(t *testing.T, legacy string) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "history.db"), legacy)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"sqlite": func(t *testing.T) Store { return openSQLite(t, "") },
		"file":   func(t *testing.T) Store { return NewFileStore(filepath.Join(t.TempDir(), "history.json")) },
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			t.Run("Empty Load", func(t *testing.T) {
				got, err := open(t).Load()
				require.NoError(t, err)
				assert.Empty(t, got)
			})

			t.Run("Round Trip", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Save(sampleEntries()))

				got, err := s.Load()
				require.NoError(t, err)
				require.Len(t, got, 4)
				assert.Equal(t, "You", got[0].Who)
				assert.Equal(t, "Hello", got[0].Text)
				assert.Equal(t, "Hi there", got[1].Text)
				assert.Empty(t, got[1].Details)
				assert.JSONEq(t, `{"ok":true,"moved":3}`, string(got[3].Details))
			})

			t.Run("Save Overwrites", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Save(sampleEntries()))
				require.NoError(t, s.Save([]Entry{{Who: "You", Text: "only"}}))

				got, err := s.Load()
				require.NoError(t, err)
				assert.Equal(t, []Entry{{Who: "You", Text: "only"}}, got)
			})

			t.Run("Save Empty", func(t *testing.T) {
				s := open(t)
				require.NoError(t, s.Save(sampleEntries()))
				require.NoError(t, s.Save(nil))

				got, err := s.Load()
				require.NoError(t, err)
				assert.Empty(t, got)
			})
		})
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	for name, content := range map[string]string{
		"not json":   "{{{",
		"object":     `{"who":"You","text":"hi"}`,
		"null":       "null",
		"wrong type": `[1, 2, 3]`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "history.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			got, err := NewFileStore(path).Load()
			assert.ErrorIs(t, err, ErrCorrupt)
			assert.Nil(t, got)
		})
	}
}

func TestSQLiteStoreCorrupt(t *testing.T) {
	s := openSQLite(t, "")
	_, err := s.db.Exec("INSERT INTO slots(key, value, updated_at) VALUES(?, ?, 0)", Key, "garbage")
	require.NoError(t, err)

	got, err := s.Load()
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Nil(t, got)
}

func TestSQLiteStoreMigratesLegacyFile(t *testing.T) {
	legacy := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, NewFileStore(legacy).Save(sampleEntries()))

	s := openSQLite(t, legacy)
	got, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.False(t, s.UpdatedAt().IsZero())

	t.Run("Save Wins Over Legacy", func(t *testing.T) {
		s := openSQLite(t, legacy)
		require.NoError(t, s.Save([]Entry{{Who: "You", Text: "fresh"}}))

		got, err := s.Load()
		require.NoError(t, err)
		assert.Equal(t, []Entry{{Who: "You", Text: "fresh"}}, got)
	})

	t.Run("Corrupt Legacy Ignored", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "history.json")
		require.NoError(t, os.WriteFile(bad, []byte("nope"), 0644))

		got, err := openSQLite(t, bad).Load()
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestSQLiteStoreLogsFailedMigration(t *testing.T) {
	legacy := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, NewFileStore(legacy).Save(sampleEntries()))

	s := openSQLite(t, legacy)
	_, err := s.db.Exec(`CREATE TRIGGER no_insert BEFORE INSERT ON slots
		BEGIN SELECT RAISE(ABORT, 'read only'); END`)
	require.NoError(t, err)

	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	got, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Contains(t, buf.String(), "Warning: failed to import legacy history")
	assert.Contains(t, buf.String(), "read only")
}

func TestCheckSQLite(t *testing.T) {
	assert.True(t, CheckSQLite())
}

func TestFilter(t *testing.T) {
	entries := sampleEntries()

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Hello", "Hi there", "move screenshots to /school", "✅ Moved 3 images"}},
		{"hi", []string{"Hi there"}},
		{"you:", []string{"Hello", "move screenshots to /school"}},
		{"agent:moved", []string{"✅ Moved 3 images"}},
		{"ai:moved", []string{"✅ Moved 3 images"}},
		{"you:moved", nil},
		{`"to /school"`, []string{"move screenshots to /school"}},
		{"move screenshots", []string{"move screenshots to /school"}},
		{"nothing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got []string
			for _, e := range Filter(entries, tt.query) {
				got = append(got, e.Text)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
