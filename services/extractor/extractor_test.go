package extractor

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gongbridge/models"
)

func testJWT(t *testing.T, gu, cell string, exp int64) string {
	t.Helper()
	header, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	payload, err := json.Marshal(map[string]interface{}{
		"gp": "okta", "exp": exp, "iat": exp - 3600, "jti": "jti-" + gu, "gu": gu, "cell": cell,
	})
	require.NoError(t, err)
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "."
}

func TestExtract_ClassifiesAndDecodes(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	jwt := testJWT(t, "a@b.com", "us-14496", exp)

	toks, cookies := New().Extract([]models.Artifact{
		{Kind: models.ArtifactLastLoginJWT, Name: "last_login_jwt", Value: jwt},
		{Kind: models.ArtifactGongSession, Name: "g-session", Value: "x"},
		{Kind: models.ArtifactAWSALB, Name: "AWSALB", Value: "alb-1"},
	})

	require.Len(t, toks, 1)
	assert.Equal(t, models.TokenLastLogin, toks[0].Kind)
	assert.Equal(t, "a@b.com", toks[0].UserEmail)
	assert.Equal(t, "us-14496", toks[0].CellID)
	assert.Equal(t, map[string]string{"g-session": "x", "AWSALB": "alb-1"}, cookies)
}

func TestExtract_DeduplicatesByRawValue(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	jwt := testJWT(t, "a@b.com", "us-14496", exp)

	// Same token seen in a request and its response.
	toks, _ := New().Extract([]models.Artifact{
		{Kind: models.ArtifactLastLoginJWT, Value: jwt},
		{Kind: models.ArtifactLastLoginJWT, Value: jwt},
		{Kind: models.ArtifactCellJWT, Value: testJWT(t, "a@b.com", "us-14496", exp+60)},
	})

	assert.Len(t, toks, 2)
}

func TestExtract_SkipsMalformedSilently(t *testing.T) {
	toks, cookies := New().Extract([]models.Artifact{
		{Kind: models.ArtifactLastLoginJWT, Value: "not-a-jwt"},
		{Kind: models.ArtifactCellJWT, Value: ""},
		{Kind: "cookie_unknown", Value: "whatever"},
	})

	assert.Empty(t, toks)
	assert.Empty(t, cookies)
}

func TestExtract_CookieLastWriteWins(t *testing.T) {
	_, cookies := New().Extract([]models.Artifact{
		{Kind: models.ArtifactGongSession, Name: "g-session", Value: "old"},
		{Kind: models.ArtifactGongSession, Name: "g-session", Value: "new"},
	})

	assert.Equal(t, "new", cookies["g-session"])
}

func TestExtract_PreDecodedPayload(t *testing.T) {
	now := time.Now().Unix()
	good := &models.JWTPayload{Exp: now + 3600, Iat: now, GU: "a@b.com", Cell: "us-14496"}
	bad := &models.JWTPayload{Exp: now, Iat: now + 10}

	toks, _ := New().Extract([]models.Artifact{
		{Kind: models.ArtifactCellJWT, Value: "opaque-raw-1", Decoded: good},
		{Kind: models.ArtifactCellJWT, Value: "opaque-raw-2", Decoded: bad},
	})

	require.Len(t, toks, 1)
	assert.Equal(t, "opaque-raw-1", toks[0].Raw)
	assert.Equal(t, "a@b.com", toks[0].UserEmail)
}

func harBody(t *testing.T, jwt string) []byte {
	t.Helper()
	body := fmt.Sprintf(`{
		"log": {"entries": [
			{"request": {"cookies": [{"name": "last_login_jwt", "value": %q}]},
			 "response": {"cookies": [{"name": "g-session", "value": "sess-1"}]}},
			{"request": {"cookies": [{"name": "AWSALBTG", "value": "tg-1"}, {"name": "irrelevant", "value": "x"}]},
			 "response": {"cookies": []}}
		]}
	}`, jwt)
	return []byte(body)
}

func TestFromHAR_PlainFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	jwt := testJWT(t, "a@b.com", "us-14496", time.Now().Add(time.Hour).Unix())
	require.NoError(t, afero.WriteFile(fs, "/capture.har", harBody(t, jwt), 0o644))

	e := New()
	artifacts, err := e.FromHAR(fs, "/capture.har")
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	toks, cookies := e.Extract(artifacts)
	require.Len(t, toks, 1)
	assert.Equal(t, "sess-1", cookies["g-session"])
	assert.Equal(t, "tg-1", cookies["AWSALBTG"])
}

func TestFromHAR_Gzip(t *testing.T) {
	fs := afero.NewMemMapFs()
	jwt := testJWT(t, "a@b.com", "us-14496", time.Now().Add(time.Hour).Unix())

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(harBody(t, jwt))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, afero.WriteFile(fs, "/capture.har.gz", buf.Bytes(), 0o644))

	artifacts, err := New().FromHAR(fs, "/capture.har.gz")
	require.NoError(t, err)
	assert.Len(t, artifacts, 3)
}

func TestFromHAR_MissingFile(t *testing.T) {
	_, err := New().FromHAR(afero.NewMemMapFs(), "/nope.har")
	assert.Error(t, err)
}

func TestFromCookieHeader(t *testing.T) {
	jwt := testJWT(t, "a@b.com", "us-14496", time.Now().Add(time.Hour).Unix())
	e := New()

	artifacts := e.FromCookieHeader("last_login_jwt=" + jwt + "; g-session=sess-1; AWSALBTG123=tg-1; _ga=tracker")
	require.Len(t, artifacts, 3)

	toks, cookies := e.Extract(artifacts)
	require.Len(t, toks, 1)
	assert.Equal(t, "a@b.com", toks[0].UserEmail)
	assert.Equal(t, "sess-1", cookies["g-session"])
	assert.Equal(t, "tg-1", cookies["AWSALBTG123"])
	assert.NotContains(t, cookies, "_ga")
}
