// Package registryclient is a typed GraphQL-over-HTTPS client for the
// closed set of registry operations wapm's core consumes (spec section
// 4.C). No GraphQL client library exists anywhere in the example pack,
// so this hand-writes the minimal {query, variables} POST envelope,
// generalized from the teacher's bearer-auth http.Client wrapper in
// internal/api/client.go onto this spec's registry instead of FTL's REST
// API.
package registryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wapm-community/wapm/internal/werror"
)

// DefaultTimeout is the per-request HTTP timeout (spec section 5: "HTTP
// calls use a per-request timeout (default 30 s)").
const DefaultTimeout = 30 * time.Second

// maxRetries bounds the bounded-exponential-backoff retry policy for
// idempotent reads (spec section 4.C).
const maxRetries = 3

// Client talks to a wapm-compatible GraphQL registry.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// New constructs a Client for endpoint, optionally authenticated with
// token (empty for unauthenticated operations like search).
func New(endpoint, token string) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: DefaultTimeout},
	}
}

// WithHTTPClient overrides the underlying *http.Client (tests inject a
// client pointed at an httptest.Server).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

// do executes a single GraphQL operation, retrying transport failures
// with bounded exponential backoff when idempotent is true. Unknown
// response fields are tolerated (spec section 9: "tolerate unknown
// fields on reads"), since out is decoded with plain encoding/json.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, idempotent bool, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return werror.Wrap(werror.KindRegistry, err, "failed to encode GraphQL request")
	}

	var lastErr error
	attempts := 1
	if idempotent {
		attempts = maxRetries
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return werror.Wrap(werror.KindCancelled, ctx.Err(), "registry request cancelled")
			case <-time.After(backoff):
			}
		}

		resp, err := c.send(ctx, body)
		if err != nil {
			lastErr = err
			continue
		}
		return c.handle(resp, out)
	}
	return werror.Wrap(werror.KindNetwork, lastErr, "registry request failed after retries")
}

func (c *Client) send(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	return c.http.Do(req)
}

func (c *Client) handle(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		c.token = ""
		return werror.New(werror.KindAuth, "registry rejected the auth token")
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return werror.Wrap(werror.KindNetwork, err, "failed to read registry response")
	}

	var gr graphQLResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return werror.Wrapf(werror.KindRegistry, err, "malformed registry response (status %d)", resp.StatusCode)
	}
	if len(gr.Errors) > 0 {
		return werror.New(werror.KindRegistry, gr.Errors[0].Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return werror.Wrap(werror.KindRegistry, err, "failed to decode registry data")
	}
	return nil
}

// Distribution describes where to download a package version's archive.
type Distribution struct {
	DownloadURL string `json:"downloadUrl"`
	Size        int64  `json:"size"`
}

// SignaturePublicKey is the uploader's public key as returned alongside a
// package version's signature.
type SignaturePublicKey struct {
	KeyID string `json:"keyId"`
	Key   string `json:"key"`
}

// Signature is the detached signature attached to a package version.
type Signature struct {
	PublicKey SignaturePublicKey `json:"publicKey"`
	Data      string             `json:"data"`
}

// ModuleDescriptor mirrors a module entry inside a version's manifest,
// as returned by the registry.
type ModuleDescriptor struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	ABI    string `json:"abi"`
}

// CommandDescriptor mirrors a command entry.
type CommandDescriptor struct {
	Name     string `json:"name"`
	Module   string `json:"module"`
	MainArgs string `json:"mainArgs"`
}

// ManifestDescriptor is the manifest shape embedded in a version
// response, enough to drive lockfile regeneration.
type ManifestDescriptor struct {
	Dependencies         map[string]string    `json:"dependencies"`
	Modules              []ModuleDescriptor   `json:"modules"`
	Commands             []CommandDescriptor  `json:"commands"`
	DisableCommandRename bool                 `json:"disableCommandRename"`
}

// PackageVersion is the full response shape of get_package_version.
type PackageVersion struct {
	Namespace    string              `json:"namespace"`
	Name         string              `json:"name"`
	Version      string              `json:"version"`
	Manifest     ManifestDescriptor  `json:"manifest"`
	Distribution Distribution        `json:"distribution"`
	Uploader     string              `json:"uploader"`
	Signature    *Signature          `json:"signature,omitempty"`
}

// GetPackageVersion fetches a single package version; version may be
// empty to request the latest.
func (c *Client) GetPackageVersion(ctx context.Context, name, version string) (*PackageVersion, error) {
	const query = `query($name: String!, $version: String) {
		packageVersion(name: $name, version: $version) {
			namespace name version uploader
			manifest { dependencies disableCommandRename modules { name source abi } commands { name module mainArgs } }
			distribution { downloadUrl size }
			signature { publicKey { keyId key } data }
		}
	}`

	var resp struct {
		PackageVersion PackageVersion `json:"packageVersion"`
	}
	vars := map[string]any{"name": name}
	if version != "" {
		vars["version"] = version
	}
	if err := c.do(ctx, query, vars, true, &resp); err != nil {
		return nil, err
	}
	return &resp.PackageVersion, nil
}

// GetPackageVersions batch-resolves a root dependency set into a flat
// resolved list (spec section 4.E step 2: "the registry returns a flat
// resolved set").
func (c *Client) GetPackageVersions(ctx context.Context, requirements map[string]string) ([]PackageVersion, error) {
	const query = `query($requirements: [PackageRequirementInput!]!) {
		packageVersions(requirements: $requirements) {
			namespace name version uploader
			manifest { dependencies disableCommandRename modules { name source abi } commands { name module mainArgs } }
			distribution { downloadUrl size }
			signature { publicKey { keyId key } data }
		}
	}`

	reqs := make([]map[string]string, 0, len(requirements))
	for name, constraint := range requirements {
		reqs = append(reqs, map[string]string{"name": name, "constraint": constraint})
	}

	var resp struct {
		PackageVersions []PackageVersion `json:"packageVersions"`
	}
	if err := c.do(ctx, query, map[string]any{"requirements": reqs}, true, &resp); err != nil {
		return nil, err
	}
	return resp.PackageVersions, nil
}

// SearchResult is one entry of a search response.
type SearchResult struct {
	Namespace   string `json:"namespace"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Search runs a registry text search.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	const gql = `query($query: String!) {
		search(query: $query) { namespace name version description }
	}`

	var resp struct {
		Search []SearchResult `json:"search"`
	}
	if err := c.do(ctx, gql, map[string]any{"query": query}, true, &resp); err != nil {
		return nil, err
	}
	return resp.Search, nil
}

// PublishInput is the payload for a single-shot publish mutation.
type PublishInput struct {
	Namespace    string `json:"namespace"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	ManifestTOML string `json:"manifestToml"`
	ArchiveData  string `json:"archiveData"` // base64
	SignatureKeyID string `json:"signatureKeyId,omitempty"`
	SignatureData  string `json:"signatureData,omitempty"`
}

// PublishPackage runs the single-shot publish mutation.
func (c *Client) PublishPackage(ctx context.Context, input PublishInput) error {
	const mutation = `mutation($input: PublishPackageInput!) {
		publishPackage(input: $input) { success }
	}`
	var resp struct {
		PublishPackage struct {
			Success bool `json:"success"`
		} `json:"publishPackage"`
	}
	return c.do(ctx, mutation, map[string]any{"input": input}, false, &resp)
}

// SignedUploadPart is a pre-signed URL for one chunk of a chunked upload.
type SignedUploadPart struct {
	PartNumber int    `json:"partNumber"`
	UploadURL  string `json:"uploadUrl"`
}

// ChunkedUploadSession requests signed URLs for a chunked publish (spec
// section 4.C: "split file into fixed-size parts, request signed URLs").
func (c *Client) ChunkedUploadSession(ctx context.Context, namespace, name, version string, partCount int) ([]SignedUploadPart, error) {
	const mutation = `mutation($namespace: String!, $name: String!, $version: String!, $partCount: Int!) {
		requestChunkedUpload(namespace: $namespace, name: $name, version: $version, partCount: $partCount) {
			partNumber uploadUrl
		}
	}`
	var resp struct {
		RequestChunkedUpload []SignedUploadPart `json:"requestChunkedUpload"`
	}
	vars := map[string]any{"namespace": namespace, "name": name, "version": version, "partCount": partCount}
	if err := c.do(ctx, mutation, vars, false, &resp); err != nil {
		return nil, err
	}
	return resp.RequestChunkedUpload, nil
}

// PartReceipt confirms one uploaded chunk, gathered client-side after
// each signed PUT and submitted back with the finalize mutation.
type PartReceipt struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

// FinalizeChunkedPublish submits the publish mutation with the part
// receipts collected from PUTting each chunk (spec section 4.C).
func (c *Client) FinalizeChunkedPublish(ctx context.Context, input PublishInput, receipts []PartReceipt) error {
	const mutation = `mutation($input: PublishPackageInput!, $parts: [PartReceiptInput!]!) {
		finalizeChunkedPublish(input: $input, parts: $parts) { success }
	}`
	var resp struct {
		FinalizeChunkedPublish struct {
			Success bool `json:"success"`
		} `json:"finalizeChunkedPublish"`
	}
	vars := map[string]any{"input": input, "parts": receipts}
	return c.do(ctx, mutation, vars, false, &resp)
}

// PublishPublicKey registers a publisher's public key with the registry.
func (c *Client) PublishPublicKey(ctx context.Context, keyID, key, verifyingSignatureID string) error {
	const mutation = `mutation($keyId: String!, $key: String!, $verifyingSignatureId: String) {
		publishPublicKey(keyId: $keyId, key: $key, verifyingSignatureId: $verifyingSignatureId) { success }
	}`
	var resp struct {
		PublishPublicKey struct {
			Success bool `json:"success"`
		} `json:"publishPublicKey"`
	}
	vars := map[string]any{"keyId": keyID, "key": key}
	if verifyingSignatureID != "" {
		vars["verifyingSignatureId"] = verifyingSignatureID
	}
	return c.do(ctx, mutation, vars, false, &resp)
}

// AuthResult is the token-auth/refresh/verify response shape.
type AuthResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// TokenAuth exchanges a username/password for a session token (spec
// section 4.C's tokenAuth operation, backing `login`).
func (c *Client) TokenAuth(ctx context.Context, username, password string) (*AuthResult, error) {
	const mutation = `mutation($username: String!, $password: String!) {
		tokenAuth(username: $username, password: $password) { token username }
	}`
	var resp struct {
		TokenAuth AuthResult `json:"tokenAuth"`
	}
	vars := map[string]any{"username": username, "password": password}
	if err := c.do(ctx, mutation, vars, false, &resp); err != nil {
		return nil, err
	}
	return &resp.TokenAuth, nil
}

// VerifyToken checks that the configured token is still valid.
func (c *Client) VerifyToken(ctx context.Context) (*AuthResult, error) {
	const query = `query { verifyToken { token username } }`
	var resp struct {
		VerifyToken AuthResult `json:"verifyToken"`
	}
	if err := c.do(ctx, query, nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp.VerifyToken, nil
}

// RefreshToken exchanges the current token for a new one.
func (c *Client) RefreshToken(ctx context.Context) (*AuthResult, error) {
	const mutation = `mutation { refreshToken { token username } }`
	var resp struct {
		RefreshToken AuthResult `json:"refreshToken"`
	}
	if err := c.do(ctx, mutation, nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp.RefreshToken, nil
}
