package barrelkv_test

import (
	"fmt"
	"log"
	"os"

	"github.com/halvardm/barrelkv"
)

func Example() {
	dir, err := os.MkdirTemp("", "barrelkv-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	db, err := barrelkv.Open(dir)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	name := []byte("Moist von Lipwig")
	if err = db.Put([]byte("name"), name); err != nil {
		log.Fatal(err)
	}

	value, ok, err := db.Get([]byte("name"))
	if err != nil {
		log.Fatal(err)
	}
	if !ok {
		log.Fatal("name not found")
	}
	fmt.Printf("%s\n", value)
	// Output:
	// Moist von Lipwig
}
