package extractor

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"gongbridge/models"
	"gongbridge/utils"
)

// jwtCookies are the cookie names that carry Gong JWTs in a capture.
var jwtCookies = map[string]string{
	"last_login_jwt": models.ArtifactLastLoginJWT,
	"cell_jwt":       models.ArtifactCellJWT,
}

// sessionCookies maps known session cookie names to artifact kinds. Matching
// is by prefix because ALB cookies show up with numbered suffixes.
var sessionCookies = []struct {
	prefix string
	kind   string
}{
	{"g-session", models.ArtifactGongSession},
	{"AWSALBTG", models.ArtifactAWSALBTG},
	{"AWSALB", models.ArtifactAWSALB},
	{"ajs_user_id", models.ArtifactGongUserID},
	{"ajs_group_id", models.ArtifactGongGroupID},
}

// harFile is the slice of the HAR format the extractor cares about.
type harFile struct {
	Log struct {
		Entries []harEntry `json:"entries"`
	} `json:"log"`
}

type harEntry struct {
	Request struct {
		Cookies []harCookie `json:"cookies"`
	} `json:"request"`
	Response struct {
		Cookies []harCookie `json:"cookies"`
	} `json:"response"`
}

type harCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FromHAR loads a HAR capture (plain or gzip-compressed) and converts its
// request and response cookies into the same artifact stream the capture
// provider emits, so extraction has a single input shape.
func (e *Extractor) FromHAR(fs afero.Fs, path string) ([]models.Artifact, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open har file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip har: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var har harFile
	if err := json.NewDecoder(r).Decode(&har); err != nil {
		return nil, fmt.Errorf("decode har: %w", err)
	}

	var artifacts []models.Artifact
	for _, entry := range har.Log.Entries {
		for _, c := range entry.Request.Cookies {
			if a, ok := cookieArtifact(c); ok {
				artifacts = append(artifacts, a)
			}
		}
		for _, c := range entry.Response.Cookies {
			if a, ok := cookieArtifact(c); ok {
				artifacts = append(artifacts, a)
			}
		}
	}
	return artifacts, nil
}

// FromCookieHeader converts a raw Cookie request header into the artifact
// stream, for captures that only preserved headers.
func (e *Extractor) FromCookieHeader(header string) []models.Artifact {
	var artifacts []models.Artifact
	for name, value := range utils.ParseCookieHeader(header) {
		if a, ok := cookieArtifact(harCookie{Name: name, Value: value}); ok {
			artifacts = append(artifacts, a)
		}
	}
	return artifacts
}

func cookieArtifact(c harCookie) (models.Artifact, bool) {
	if kind, ok := jwtCookies[c.Name]; ok {
		return models.Artifact{Kind: kind, Name: c.Name, Value: c.Value}, true
	}
	for _, sc := range sessionCookies {
		if strings.HasPrefix(c.Name, sc.prefix) {
			return models.Artifact{Kind: sc.kind, Name: c.Name, Value: c.Value}, true
		}
	}
	return models.Artifact{}, false
}
