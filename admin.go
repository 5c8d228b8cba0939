package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vipnode/nodehealth/admin"
	"github.com/vipnode/nodehealth/jsonrpc2"
)

const adminUsage = `Actions:
  address                      Print the signing address, generating a key if needed.
  enable  <network> <id>       Enable a node. The id can be the short ID from status.
  disable <network> <id>       Disable a node.
  add     <network> <url> [alt] Add a node with an optional alternate origin.
  remove  <network> <id>       Remove a node.

Examples:
* Authorize this machine on the server:
  $ nodehealth admin address
  0x961Aa96FebeE5465149a0787B03bFa14D8e9033F
  $ nodehealth serve --admin 0x961Aa96FebeE5465149a0787B03bFa14D8e9033F

* Disable a misbehaving node:
  $ nodehealth admin --rpc https://health.example.org disable eth 1a2b3c4d
`

// loadAdminKey loads the admin key at path, or at the default location in
// the data dir. If create is set, a missing key is generated.
func loadAdminKey(path string, dataDir string, create bool) (*ecdsa.PrivateKey, error) {
	if path == "" {
		dir, err := findDataDir(dataDir)
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "admin.key")
	}

	privkey, err := crypto.LoadECDSA(path)
	if err == nil {
		return privkey, nil
	}
	if !os.IsNotExist(err) || !create {
		return nil, ErrExplain{err, "Failed to load the admin key. Run `nodehealth admin address` to generate one."}
	}

	logger.Infof("Generating admin key: %s", path)
	privkey, err = crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := crypto.SaveECDSA(path, privkey); err != nil {
		return nil, err
	}
	return privkey, nil
}

func runAdmin(options Options) error {
	args := options.Admin.Args
	privkey, err := loadAdminKey(options.Admin.PrivateKey, options.DataDir, args.Action == "address")
	if err != nil {
		return err
	}
	if args.Action == "address" {
		fmt.Println(admin.Address(privkey))
		return nil
	}
	if args.Network == "" || len(args.Target) == 0 {
		return ErrExplain{errors.New("missing arguments"), adminUsage}
	}

	r := admin.Remote(&jsonrpc2.HTTPService{Endpoint: options.Admin.RPC}, privkey)
	ctx, cancel := context.WithTimeout(context.Background(), options.Timeout)
	defer cancel()

	switch args.Action {
	case "enable", "disable":
		err = r.SetEnabled(ctx, args.Network, args.Target[0], args.Action == "enable")
	case "remove":
		err = r.RemoveNode(ctx, args.Network, args.Target[0])
	case "add":
		alt := ""
		if len(args.Target) > 1 {
			alt = args.Target[1]
		}
		var id string
		id, err = r.AddNode(ctx, args.Network, args.Target[0], alt)
		if err == nil {
			fmt.Println(id)
		}
	default:
		return ErrExplain{fmt.Errorf("unknown action: %q", args.Action), adminUsage}
	}

	var errResp *jsonrpc2.ErrResponse
	if errors.As(err, &errResp) {
		return ErrExplain{err, fmt.Sprintf("The server rejected the request. Is %s in its --admin list?", r.Address())}
	}
	return err
}
