package main

import (
	"fmt"
	"os"

	"contractorium/crypto"
)

type keyResult struct {
	Address  string `json:"address"`
	Keystore string `json:"keystore"`
}

func (c *cli) runKeygen(args []string) int {
	fs := newFlagSet("keygen", c.stderr)
	out := fs.String("out", "", "keystore file to create")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if c.missing(fs, "out") {
		return 2
	}
	if _, err := os.Stat(*out); err == nil {
		return c.fail(fmt.Errorf("%s already exists", *out))
	}
	pass, err := c.passphrase()
	if err != nil {
		return c.fail(err)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return c.fail(err)
	}
	if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
		return c.fail(err)
	}
	return c.print(keyResult{Address: key.PubKey().Address().String(), Keystore: *out})
}

func (c *cli) runAddress(args []string) int {
	fs := newFlagSet("address", c.stderr)
	path := fs.String("keystore", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if c.missing(fs, "keystore") {
		return 2
	}
	key, err := c.loadKey(*path)
	if err != nil {
		return c.fail(err)
	}
	return c.print(keyResult{Address: key.PubKey().Address().String(), Keystore: *path})
}

func (c *cli) loadKey(path string) (*crypto.PrivateKey, error) {
	if key, ok := c.keys[path]; ok {
		return key, nil
	}
	pass, err := c.passphrase()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("open keystore %s: %w", path, err)
	}
	if c.keys == nil {
		c.keys = make(map[string]*crypto.PrivateKey)
	}
	c.keys[path] = key
	return key, nil
}
