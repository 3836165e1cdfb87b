package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/HVML/purcmc-renderer/internal/frame"
)

// Manifest is the body of the *initial* response the server sends right
// after accept, before any startSession, per spec.md §4.E and
// SPEC_FULL.md's supplemented feature #2: the distilled spec only mentions
// "server features, version, and supported counts" and (on WebSocket) a
// challengeCode; original_source's on_new_endpoint/on_connect_for_client
// path actually emits a richer manifest, reproduced here.
type Manifest struct {
	ProtocolName    string
	ProtocolVersion int
	MarkupVersion   string

	OfficialFullName  string
	OfficialShortName string

	MaxWorkspaces    int
	MaxPlainWindows  int
	MaxTabbedWindows int
	MaxWidgets       int

	DensityList []string

	// ChallengeCode is only populated for WebSocket transport endpoints,
	// per spec.md §4.E.
	ChallengeCode string
}

// DefaultManifest returns the manifest advertised by this renderer build.
func DefaultManifest() Manifest {
	return Manifest{
		ProtocolName:      protocolName,
		ProtocolVersion:   ServerProtoVersion,
		MarkupVersion:     "1.0",
		OfficialFullName:  "PurCMC Renderer Core",
		OfficialShortName: "PurCMCRenderer",
		MaxWorkspaces:     8,
		MaxPlainWindows:   64,
		MaxTabbedWindows:  16,
		MaxWidgets:        256,
		DensityList:       []string{"normal", "high", "extra-high"},
	}
}

// WithChallengeCode returns a copy of m carrying a freshly generated
// WebSocket challenge code, keyed by a random per-connection nonce (a
// github.com/google/uuid value rather than a raw byte buffer, matching
// the uuid usage pattern in the rest of the retrieval pack).
func (m Manifest) WithChallengeCode(appID string) Manifest {
	nonce := uuid.New()
	m.ChallengeCode = frame.GenerateChallengeCode(appID, nonce[:])
	return m
}

// Features renders the manifest as the `\n`-separated `key:value` feature
// list spec.md §4.E describes.
func (m Manifest) Features() string {
	var b strings.Builder
	kv := func(k, v string) { fmt.Fprintf(&b, "%s:%s\n", k, v) }
	kv("protocolName", m.ProtocolName)
	kv("protocolVersion", fmt.Sprintf("%d", m.ProtocolVersion))
	kv("markupVersion", m.MarkupVersion)
	kv("officialFullName", m.OfficialFullName)
	kv("officialShortName", m.OfficialShortName)
	kv("maxWorkspaces", fmt.Sprintf("%d", m.MaxWorkspaces))
	kv("maxPlainWindows", fmt.Sprintf("%d", m.MaxPlainWindows))
	kv("maxTabbedWindows", fmt.Sprintf("%d", m.MaxTabbedWindows))
	kv("maxWidgets", fmt.Sprintf("%d", m.MaxWidgets))
	kv("densityList", strings.Join(m.DensityList, ","))
	if m.ChallengeCode != "" {
		kv("challengeCode", m.ChallengeCode)
	}
	return b.String()
}
