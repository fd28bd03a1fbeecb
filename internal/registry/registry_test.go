package registry

import (
	"testing"
	"time"

	"github.com/asnlens/asnlens/internal/codec"
	"github.com/asnlens/asnlens/internal/miniasn"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alphaSchema = `
Alpha DEFINITIONS ::= BEGIN
    AlphaMsg ::= SEQUENCE {
        id   INTEGER (0..255),
        name IA5String
    }
END
`

const alphaSchemaV2 = `
Alpha DEFINITIONS ::= BEGIN
    AlphaMsg ::= SEQUENCE {
        id   INTEGER (0..255),
        name IA5String
    }
    Extra ::= BOOLEAN
END
`

const betaSchema = `
Beta DEFINITIONS ::= BEGIN
    BetaMsg ::= SEQUENCE { flag BOOLEAN }
END
`

const betaSchemaV2 = `
Beta DEFINITIONS ::= BEGIN
    BetaMsg ::= SEQUENCE { flag BOOLEAN }
    Extra ::= BOOLEAN
END
`

func newTestRegistry(t *testing.T, fs billy.Filesystem, cfg Config) *Registry {
	t.Helper()
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Hour
	}
	return New(
		miniasn.NewEngine(fs),
		func() Config { return cfg },
		zerolog.Nop(),
		WithFilesystem(fs),
		WithBaseDirs("/work", "/bundle"),
	)
}

func writeFile(t *testing.T, fs billy.Filesystem, path, content string) {
	t.Helper()
	require.NoError(t, util.WriteFile(fs, path, []byte(content), 0o644))
}

func TestLoadAll_DiscoversProtocolDirectories(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/specs/alpha/alpha.asn", alphaSchema)
	writeFile(t, fs, "/specs/beta/beta.asn", betaSchema)

	reg := newTestRegistry(t, fs, Config{Locations: []string{"/specs"}})
	errs := reg.LoadAll()
	assert.Empty(t, errs)

	meta := reg.ListMetadata()
	require.Len(t, meta, 2)
	assert.Equal(t, "alpha", meta[0].Name)
	assert.Equal(t, []string{"AlphaMsg"}, meta[0].Types)
	assert.Equal(t, []string{"alpha.asn"}, meta[0].Files)
	assert.False(t, meta[0].IsBundled)
	assert.Equal(t, "beta", meta[1].Name)

	spec := reg.GetCompiled("alpha")
	require.NotNil(t, spec)
	assert.Contains(t, spec.Types(), "AlphaMsg")

	assert.Nil(t, reg.GetCompiled("gamma"))
	assert.Nil(t, reg.GetProtocol("gamma"))
}

func TestLoadAll_SingleFileLocation(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/one/person.asn", alphaSchema)

	reg := newTestRegistry(t, fs, Config{Locations: []string{"/one/person.asn"}})
	require.Empty(t, reg.LoadAll())

	p := reg.GetProtocol("person")
	require.NotNil(t, p)
	assert.Equal(t, []string{"person.asn"}, p.Files)
	assert.Equal(t, []string{"AlphaMsg"}, p.Types)
}

func TestGetProtocol_ReturnsACopy(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/specs/alpha/alpha.asn", alphaSchema)
	writeFile(t, fs, "/specs/alpha/sample.json", `{"id": 7, "name": "Bo"}`)

	reg := newTestRegistry(t, fs, Config{Locations: []string{"/specs"}})
	require.Empty(t, reg.LoadAll())

	p := reg.GetProtocol("alpha")
	require.NotNil(t, p)
	p.Types[0] = "Mangled"
	p.Files[0] = "mangled.asn"
	p.Examples["stray"] = true

	fresh := reg.GetProtocol("alpha")
	assert.Equal(t, []string{"AlphaMsg"}, fresh.Types)
	assert.Equal(t, []string{"alpha.asn"}, fresh.Files)
	assert.NotContains(t, fresh.Examples, "stray")
}

func TestLoadAll_DuplicateProtocolNameKeepsFirst(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/first/core/core.asn", alphaSchema)
	writeFile(t, fs, "/second/core/core.asn", betaSchema)

	reg := newTestRegistry(t, fs, Config{Locations: []string{"/first", "/second"}})
	require.Empty(t, reg.LoadAll())

	meta := reg.ListMetadata()
	require.Len(t, meta, 1, "same-named units from later locations are dropped")
	assert.Equal(t, "core", meta[0].Name)
	assert.Equal(t, []string{"AlphaMsg"}, meta[0].Types)
}

func TestReload_FailureRetainsLastGood(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/specs/alpha/alpha.asn", alphaSchema)
	writeFile(t, fs, "/specs/beta/beta.asn", betaSchema)

	reg := newTestRegistry(t, fs, Config{Locations: []string{"/specs"}})
	require.Empty(t, reg.LoadAll())

	// Break beta and extend alpha in the same pass.
	writeFile(t, fs, "/specs/beta/beta.asn", "THIS IS NOT ASN.1")
	writeFile(t, fs, "/specs/alpha/alpha.asn", alphaSchemaV2)

	errs := reg.Reload()
	require.Contains(t, errs, "beta")
	assert.NotContains(t, errs, "alpha")

	// Beta keeps its last working compilation.
	beta := reg.GetProtocol("beta")
	require.NotNil(t, beta)
	assert.Equal(t, []string{"BetaMsg"}, beta.Types)

	// Alpha picked up the new type.
	alpha := reg.GetProtocol("alpha")
	require.NotNil(t, alpha)
	assert.Contains(t, alpha.Types, "Extra")

	assert.Equal(t, errs, reg.Errors())

	// Fixing beta clears the failure on the next reload.
	writeFile(t, fs, "/specs/beta/beta.asn", betaSchema)
	assert.Empty(t, reg.Reload())
	assert.Empty(t, reg.Errors())
}

func TestReload_BrokenNewProtocolNeverLoads(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/specs/bad/bad.asn", "garbage ::=")

	reg := newTestRegistry(t, fs, Config{Locations: []string{"/specs"}})
	errs := reg.LoadAll()
	require.Contains(t, errs, "bad")
	assert.Nil(t, reg.GetProtocol("bad"), "a protocol with no working version stays absent")
}

func TestRelativeLocation_BundledResolution(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/bundle/specs/core/core.asn", betaSchema)

	reg := newTestRegistry(t, fs, Config{Locations: []string{"specs"}})
	require.Empty(t, reg.LoadAll())

	p := reg.GetProtocol("core")
	require.NotNil(t, p)
	assert.True(t, p.Bundled, "locations resolved under the executable directory are bundled")
}

func TestLoadAll_MissingLocationIsSkipped(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/specs/alpha/alpha.asn", alphaSchema)

	reg := newTestRegistry(t, fs, Config{Locations: []string{"/specs", "/nowhere"}})
	assert.Empty(t, reg.LoadAll())
	assert.Len(t, reg.ListMetadata(), 1)
}

func TestExamples_CoLocatedJSON(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/specs/alpha/alpha.asn", alphaSchema)
	writeFile(t, fs, "/specs/alpha/sample.json", `{"id": 7, "name": "Bo"}`)
	writeFile(t, fs, "/specs/alpha/broken.json", `{"id": `)

	reg := newTestRegistry(t, fs, Config{Locations: []string{"/specs"}})
	require.Empty(t, reg.LoadAll())

	examples := reg.GetExamples("alpha")
	require.Contains(t, examples, "sample")
	assert.NotContains(t, examples, "broken", "unparseable examples are skipped")

	sample, ok := examples["sample"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Bo", sample["name"])

	assert.Nil(t, reg.GetExamples("gamma"))
}

func TestRefresh_PicksUpChangedSources(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/specs/alpha/alpha.asn", alphaSchema)

	reg := newTestRegistry(t, fs, Config{
		Locations:    []string{"/specs"},
		PollInterval: time.Nanosecond,
	})
	require.Empty(t, reg.LoadAll())
	require.NotContains(t, reg.GetCompiled("alpha").Types(), "Extra")

	writeFile(t, fs, "/specs/alpha/alpha.asn", alphaSchemaV2)
	time.Sleep(time.Millisecond)

	spec := reg.GetCompiled("alpha")
	require.NotNil(t, spec)
	assert.Contains(t, spec.Types(), "Extra", "an expired poll interval triggers a rescan on read")
}

func TestRefresh_BrokenEditRetainsStaleNeighborIntact(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/specs/alpha/alpha.asn", alphaSchema)
	writeFile(t, fs, "/specs/beta/beta.asn", betaSchema)

	reg := newTestRegistry(t, fs, Config{
		Locations:    []string{"/specs"},
		PollInterval: time.Nanosecond,
	})
	require.Empty(t, reg.LoadAll())

	// One protocol is broken and the other extended between polls.
	writeFile(t, fs, "/specs/alpha/alpha.asn", "THIS IS NOT ASN.1")
	writeFile(t, fs, "/specs/beta/beta.asn", betaSchemaV2)
	time.Sleep(time.Millisecond)

	meta := reg.ListMetadata()
	require.Len(t, meta, 2, "a broken edit never removes the protocol")
	assert.Equal(t, []string{"AlphaMsg"}, meta[0].Types, "alpha serves its last working compilation")
	assert.Contains(t, meta[1].Types, "Extra", "beta recompiled despite alpha's failure")
	assert.Contains(t, reg.Errors(), "alpha")
	assert.NotContains(t, reg.Errors(), "beta")
}

func TestRefresh_ThrottledWithinInterval(t *testing.T) {
	fs := memfs.New()
	writeFile(t, fs, "/specs/alpha/alpha.asn", alphaSchema)

	reg := newTestRegistry(t, fs, Config{Locations: []string{"/specs"}, PollInterval: time.Hour})
	require.Empty(t, reg.LoadAll())

	writeFile(t, fs, "/specs/alpha/alpha.asn", "broken now")

	// Inside the interval the registry serves the compiled state without
	// touching the filesystem.
	spec := reg.GetCompiled("alpha")
	require.NotNil(t, spec)
	assert.Contains(t, spec.Types(), "AlphaMsg")
	assert.Empty(t, reg.Errors())
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, []string{".asn", ".asn1"}, cfg.Extensions)
	assert.Equal(t, codec.RulePER, cfg.Rule)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
}
