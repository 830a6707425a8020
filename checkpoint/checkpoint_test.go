package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

func init() {
	logging.SetLevel(logging.ERROR, "checkpoint")
}

func openTestDB(tst *testing.T) *bolt.DB {
	db, err := bolt.Open(filepath.Join(tst.TempDir(), "checkpoint.db"), 0600, nil)
	if err != nil {
		tst.Fatal("Error opening database:", err)
	}
	tst.Cleanup(func() { db.Close() })
	return db
}

func TestSaveLoad(tst *testing.T) {
	db := openTestDB(tst)
	io := NewIO(db, []byte("run1"), 100)

	state := &State{
		Parameters: map[string]float64{"theta": 0.25},
		Likelihood: -12.5,
		Iter:       17,
		Final:      true,
	}
	if err := io.Save(state); err != nil {
		tst.Fatal("Error saving checkpoint:", err)
	}

	loaded, err := io.Load()
	if err != nil {
		tst.Fatal("Error loading checkpoint:", err)
	}
	if loaded == nil {
		tst.Fatal("Expected a checkpoint")
	}
	if loaded.Parameters["theta"] != 0.25 {
		tst.Error("Incorrect parameter value:", loaded.Parameters)
	}
	if loaded.Likelihood != -12.5 || loaded.Iter != 17 || !loaded.Final {
		tst.Errorf("Incorrect checkpoint contents: %+v", loaded)
	}
}

func TestLoadMissing(tst *testing.T) {
	db := openTestDB(tst)
	io := NewIO(db, []byte("absent"), 100)
	loaded, err := io.Load()
	if err != nil {
		tst.Error("Error loading checkpoint:", err)
	}
	if loaded != nil {
		tst.Error("Expected no checkpoint, got", loaded)
	}
}

func TestKeyIsolation(tst *testing.T) {
	db := openTestDB(tst)
	io1 := NewIO(db, []byte("a"), 100)
	io2 := NewIO(db, []byte("b"), 100)

	err := io1.Save(&State{Parameters: map[string]float64{"theta": 1}})
	if err != nil {
		tst.Fatal("Error saving checkpoint:", err)
	}
	loaded, err := io2.Load()
	if err != nil {
		tst.Error("Error loading checkpoint:", err)
	}
	if loaded != nil {
		tst.Error("Expected no checkpoint for a different key, got", loaded)
	}
}

func TestNilDB(tst *testing.T) {
	io := NewIO(nil, []byte("x"), 100)
	if err := io.Save(&State{Parameters: map[string]float64{"theta": 1}}); err != nil {
		tst.Error("Expected nil database save to be a no-op, got", err)
	}
	loaded, err := io.Load()
	if err != nil || loaded != nil {
		tst.Error("Expected no checkpoint from a nil database")
	}
}

func TestOld(tst *testing.T) {
	io := NewIO(nil, []byte("x"), 3600)
	if !io.Old() {
		tst.Error("Expected a fresh IO to be old")
	}
	io.SetNow()
	if io.Old() {
		tst.Error("Expected IO to be recent after SetNow")
	}
}
