// Package dbtest provides a shared test suite for db.Database
// implementations. Each engine's test package calls these helpers against
// its own instance.
package dbtest

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/zkpoll/db"
)

// TestWriteTx exercises the basic WriteTx contract: reads of pending writes,
// visibility after commit, deletes and discard.
func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	defer wTx.Discard()

	_, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.Equals, db.ErrKeyNotFound)

	c.Assert(wTx.Set([]byte("a"), []byte("b")), qt.IsNil)

	v, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	c.Assert(wTx.Commit(), qt.IsNil)

	// Uncommitted writes of a new tx must not be visible to the database.
	wTx = database.WriteTx()
	defer wTx.Discard()
	c.Assert(wTx.Set([]byte("x"), []byte("y")), qt.IsNil)

	_, err = database.Get([]byte("x"))
	c.Assert(err, qt.Equals, db.ErrKeyNotFound)
	wTx.Discard()

	// Committed writes are visible.
	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	// Delete a committed key.
	wTx = database.WriteTx()
	defer wTx.Discard()
	c.Assert(wTx.Delete([]byte("a")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.Equals, db.ErrKeyNotFound)
}

// TestIterate checks prefixed iteration and early termination.
func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	prefix0 := []byte("a")
	prefix1 := []byte("b")

	wTx := database.WriteTx()
	defer wTx.Discard()
	for i := 0; i < 10; i++ {
		key := append(prefix0, []byte(fmt.Sprintf("%d", i))...)
		c.Assert(wTx.Set(key, []byte{byte(i)}), qt.IsNil)
	}
	for i := 0; i < 5; i++ {
		key := append(prefix1, []byte(fmt.Sprintf("%d", i))...)
		c.Assert(wTx.Set(key, []byte{byte(i)}), qt.IsNil)
	}
	c.Assert(wTx.Commit(), qt.IsNil)

	count := 0
	err := database.Iterate(prefix0, func(key, value []byte) bool {
		count++
		return true
	})
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, 10)

	// Early termination.
	count = 0
	err = database.Iterate(prefix1, func(key, value []byte) bool {
		count++
		return count < 3
	})
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, 3)

	// Full iteration covers both prefixes.
	count = 0
	err = database.Iterate(nil, func(key, value []byte) bool {
		count++
		return true
	})
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, 15)
}

// TestWriteTxApply checks that pending writes of one tx can be applied into
// another and committed there.
func TestWriteTxApply(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx0 := database.WriteTx()
	defer wTx0.Discard()
	c.Assert(wTx0.Set([]byte("a"), []byte("0")), qt.IsNil)
	c.Assert(wTx0.Set([]byte("b"), []byte("1")), qt.IsNil)
	c.Assert(wTx0.Commit(), qt.IsNil)

	wTx1 := database.WriteTx()
	defer wTx1.Discard()
	c.Assert(wTx1.Set([]byte("c"), []byte("2")), qt.IsNil)

	wTx2 := database.WriteTx()
	defer wTx2.Discard()
	c.Assert(wTx2.Apply(wTx1), qt.IsNil)
	wTx1.Discard()
	c.Assert(wTx2.Commit(), qt.IsNil)

	v, err := database.Get([]byte("c"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("2"))
}

// TestWriteTxApplyPrefixed checks Apply across a plain database and a
// prefixed wrapper of the same database.
func TestWriteTxApplyPrefixed(t *testing.T, database, prefixedDB db.Database) {
	c := qt.New(t)

	keysValues := [][]byte{[]byte("a"), []byte("b"), []byte("c")}

	wTxPrefixed := prefixedDB.WriteTx()
	defer wTxPrefixed.Discard()
	for _, kv := range keysValues {
		c.Assert(wTxPrefixed.Set(kv, kv), qt.IsNil)
	}

	wTx := database.WriteTx()
	defer wTx.Discard()
	c.Assert(wTx.Apply(wTxPrefixed), qt.IsNil)
	wTxPrefixed.Discard()
	c.Assert(wTx.Commit(), qt.IsNil)

	// The keys land unprefixed in the plain database, since Apply copies
	// the keys as seen through the prefixed view.
	for _, kv := range keysValues {
		v, err := database.Get(kv)
		c.Assert(err, qt.IsNil)
		c.Assert(v, qt.DeepEquals, kv)
	}
}
