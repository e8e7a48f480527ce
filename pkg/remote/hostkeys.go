// pkg/remote/hostkeys.go

package remote

import (
	"bytes"
	"errors"
	"net"
	"os"
	"sync"

	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/xdg"
)

// TrustOnFirstUse returns a host key callback backed by the known_hosts file
// at path. Unknown hosts are accepted and recorded. A known host presenting a
// different key is rejected.
func TrustOnFirstUse(path string, log *zap.Logger) (ssh.HostKeyCallback, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := xdg.EnsureDir(path); err != nil {
		return nil, cerr.Wrapf(err, "create directory for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, shared.SecretFilePerm)
	if err != nil {
		return nil, cerr.Wrapf(err, "open %s", path)
	}
	_ = f.Close()

	check, err := knownhosts.New(path)
	if err != nil {
		return nil, cerr.Wrapf(err, "parse %s", path)
	}

	var mu sync.Mutex
	accepted := map[string][]byte{}
	return func(hostname string, addr net.Addr, key ssh.PublicKey) error {
		mu.Lock()
		defer mu.Unlock()

		host := knownhosts.Normalize(hostname)
		if prev, ok := accepted[host]; ok {
			if bytes.Equal(prev, key.Marshal()) {
				return nil
			}
			return cerr.Newf("host key for %s changed during this run", host)
		}

		err := check(hostname, addr, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
			log.Error("Host key mismatch",
				zap.String("host", hostname),
				zap.String("fingerprint", ssh.FingerprintSHA256(key)),
				zap.String("known_hosts", path))
			return cerr.WithHintf(err, "remove the stale entry for %s from %s if the host was rebuilt", hostname, path)
		}

		line := knownhosts.Line([]string{host}, key)
		kh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, shared.SecretFilePerm)
		if err != nil {
			return cerr.Wrapf(err, "record host key in %s", path)
		}
		defer kh.Close()
		if _, err := kh.WriteString(line + "\n"); err != nil {
			return cerr.Wrapf(err, "record host key in %s", path)
		}
		accepted[host] = key.Marshal()
		log.Info("Trusting new host key",
			zap.String("host", hostname),
			zap.String("fingerprint", ssh.FingerprintSHA256(key)))
		return nil
	}, nil
}
