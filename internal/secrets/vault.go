// Package secrets resolves a host's `vault://path#field` password/key
// reference to a plaintext value via HashiCorp Vault's KV v2 engine. The
// core never sees a Vault client; it only ever receives the resolved
// string, through ResolveHostPassword, which has the shape of the ssh
// package's PasswordResolver.
package secrets

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"

	"github.com/nexus-run/nexus/internal/core"
)

// Resolver resolves a reference string (e.g. "vault://secret/data/web#password")
// to plaintext.
type Resolver func(ctx context.Context, ref string) (string, error)

// VaultClient resolves vault:// references against a single Vault server.
type VaultClient struct {
	client *vault.Client
}

// NewVaultClient builds a client against addr, authenticating with token.
func NewVaultClient(addr, token string) (*VaultClient, error) {
	cfg := vault.DefaultConfig()
	cfg.Address = addr
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}
	client.SetToken(token)
	return &VaultClient{client: client}, nil
}

// Resolve implements Resolver. A reference has the form
// "vault://<secret-path>#<field>", e.g. "vault://secret/data/web#password".
func (v *VaultClient) Resolve(ctx context.Context, ref string) (string, error) {
	path, field, err := splitRef(ref)
	if err != nil {
		return "", err
	}

	secret, err := v.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("read vault secret %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault secret %s not found", path)
	}

	data := secret.Data
	if nested, ok := secret.Data["data"].(map[string]interface{}); ok {
		data = nested // KV v2 wraps the payload under "data"
	}

	value, ok := data[field]
	if !ok {
		return "", fmt.Errorf("vault secret %s has no field %q", path, field)
	}
	str, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("vault secret %s field %q is not a string", path, field)
	}
	return str, nil
}

// ResolveHostPassword adapts Resolve to ssh.PasswordResolver's shape,
// resolving host.PasswordRef directly. If the host carries no password
// reference it returns an empty password rather than an error, letting
// key or agent auth take over.
func (v *VaultClient) ResolveHostPassword(ctx context.Context, host core.Host) (string, error) {
	if host.PasswordRef == "" {
		return "", nil
	}
	return v.Resolve(ctx, host.PasswordRef)
}

func splitRef(ref string) (path, field string, err error) {
	const prefix = "vault://"
	if !strings.HasPrefix(ref, prefix) {
		return "", "", fmt.Errorf("not a vault reference: %q", ref)
	}
	rest := strings.TrimPrefix(ref, prefix)
	parts := strings.SplitN(rest, "#", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed vault reference %q, want vault://path#field", ref)
	}
	return parts[0], parts[1], nil
}
