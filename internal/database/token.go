package database

import (
	"context"
	"encoding/binary"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// TokenScope is the resource scope database access tokens are minted for.
const TokenScope = "https://database.windows.net/.default"

// TokenCredential is the slice of azcore.TokenCredential this package uses.
// azidentity credentials satisfy it directly.
type TokenCredential interface {
	GetToken(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error)
}

func defaultCredential() (TokenCredential, error) {
	return azidentity.NewDefaultAzureCredential(nil)
}

func fetchToken(ctx context.Context, cred TokenCredential) (string, error) {
	tk, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{TokenScope}})
	if err != nil {
		return "", err
	}
	return tk.Token, nil
}

// EncodeAccessToken packs a bearer token into the layout SQL Server drivers
// expect for the access-token pre-connection attribute: a 4-byte
// little-endian byte length followed by the UTF-8 token bytes expanded to
// UTF-16LE, each byte followed by a zero byte.
func EncodeAccessToken(token string) []byte {
	raw := []byte(token)
	buf := make([]byte, 4, 4+2*len(raw))
	binary.LittleEndian.PutUint32(buf, uint32(2*len(raw)))
	for _, b := range raw {
		buf = append(buf, b, 0)
	}
	return buf
}

// DecodeAccessToken reverses EncodeAccessToken. Truncated input yields the
// longest decodable prefix.
func DecodeAccessToken(attr []byte) string {
	if len(attr) < 4 {
		return ""
	}
	n := int(binary.LittleEndian.Uint32(attr))
	body := attr[4:]
	if n > len(body) {
		n = len(body)
	}
	raw := make([]byte, 0, n/2)
	for i := 0; i+1 < n; i += 2 {
		raw = append(raw, body[i])
	}
	return string(raw)
}
