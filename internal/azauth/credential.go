package azauth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	logx "github.com/chatgraph-poc/server/pkg/logger"
)

// CognitiveServicesScope is the Entra ID scope for Azure OpenAI.
const CognitiveServicesScope = "https://cognitiveservices.azure.com/.default"

// refreshSkew renews a cached token this long before it expires.
const refreshSkew = 2 * time.Minute

// NewChainedCredential tries the managed identity first (user-assigned when
// clientID is set) and falls back to the Azure Developer CLI login, scoped to
// tenantID when set.
func NewChainedCredential(clientID, tenantID string) (azcore.TokenCredential, error) {
	miOpts := &azidentity.ManagedIdentityCredentialOptions{}
	if clientID != "" {
		miOpts.ID = azidentity.ClientID(clientID)
	}
	mi, err := azidentity.NewManagedIdentityCredential(miOpts)
	if err != nil {
		return nil, fmt.Errorf("managed identity credential: %w", err)
	}

	azd, err := azidentity.NewAzureDeveloperCLICredential(&azidentity.AzureDeveloperCLICredentialOptions{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("azure developer cli credential: %w", err)
	}

	chain, err := azidentity.NewChainedTokenCredential([]azcore.TokenCredential{mi, azd}, nil)
	if err != nil {
		return nil, fmt.Errorf("chained credential: %w", err)
	}
	logx.Debug().Bool("user_assigned", clientID != "").Str("tenant_id", tenantID).Msg("Using managed identity, then Azure Developer CLI credentials")
	return chain, nil
}

// NewDefaultCredential returns the SDK's default credential chain.
func NewDefaultCredential() (azcore.TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("default azure credential: %w", err)
	}
	return cred, nil
}

// NewHTTPClient returns a client that authorizes every request with a bearer
// token for scope obtained from cred.
func NewHTTPClient(cred azcore.TokenCredential, scope string, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewBearerTransport(cred, scope, nil),
	}
}

// BearerTransport is an http.RoundTripper adding an Authorization header.
// Tokens are cached until shortly before they expire.
type BearerTransport struct {
	cred  azcore.TokenCredential
	scope string
	base  http.RoundTripper

	mu    sync.Mutex
	token azcore.AccessToken
}

// NewBearerTransport wraps base, http.DefaultTransport when nil.
func NewBearerTransport(cred azcore.TokenCredential, scope string, base http.RoundTripper) *BearerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &BearerTransport{cred: cred, scope: scope, base: base}
}

func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.accessToken(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+tok)
	// An empty api-key header would be rejected before the bearer token is read.
	if out.Header.Get("api-key") == "" {
		out.Header.Del("api-key")
	}
	return t.base.RoundTrip(out)
}

func (t *BearerTransport) accessToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token.Token != "" && time.Until(t.token.ExpiresOn) > refreshSkew {
		return t.token.Token, nil
	}
	tok, err := t.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{t.scope}})
	if err != nil {
		return "", fmt.Errorf("get token for %s: %w", t.scope, err)
	}
	t.token = tok
	return tok.Token, nil
}
