package effect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coreman2200/roomlight/internal/setting"
	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ManagerName is the display name of the instance that lets the web client
// create and remove effects.
const (
	ManagerName    = "Manager"
	ManagerLibrary = "manager"
)

// Document is the persisted snapshot of a registry.
type Document struct {
	Templates []string
	Effects   []Entry

	// Dropped names the entries ParseDocument could not read. Import
	// reports them as skipped.
	Dropped []string
}

// Entry is one instance of a Document. Settings stay raw so they go
// through the same merge validation as a client patch on import.
type Entry struct {
	Name     string          `json:"-"`
	Library  string          `json:"libName"`
	Settings json.RawMessage `json:"settings"`
}

func (d Document) MarshalJSON() ([]byte, error) {
	effects := orderedmap.New[string, Entry](len(d.Effects))
	for _, e := range d.Effects {
		effects.Set(e.Name, e)
	}
	tmpl := d.Templates
	if tmpl == nil {
		tmpl = []string{}
	}
	return json.Marshal(struct {
		Templates []string                             `json:"effectLib"`
		Effects   *orderedmap.OrderedMap[string, Entry] `json:"effects"`
	}{tmpl, effects})
}

const documentSchema = `{
	"type": "object",
	"required": ["effectLib", "effects"],
	"properties": {
		"effectLib": {"type": "array", "items": {"type": "string"}},
		"effects": {"type": "object"}
	}
}`

const entrySchema = `{
	"type": "object",
	"required": ["libName", "settings"],
	"properties": {
		"libName": {"type": "string"},
		"settings": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["displayName", "value"]
			}
		}
	}
}`

var docSchema, effectSchema = func() (*jsonschema.Schema, *jsonschema.Schema) {
	const (
		docURL   = "mem://roomlight/state.json"
		entryURL = "mem://roomlight/entry.json"
	)
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(docURL, strings.NewReader(documentSchema)); err != nil {
		panic(err)
	}
	if err := c.AddResource(entryURL, strings.NewReader(entrySchema)); err != nil {
		panic(err)
	}
	return c.MustCompile(docURL), c.MustCompile(entryURL)
}()

func decodeJSON(data []byte) (any, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	err := dec.Decode(&v)
	return v, err
}

// ParseDocument decodes a stored snapshot, keeping the document order of
// its effects. It fails only when the document as a whole is unreadable;
// malformed entries are left out and listed in Dropped.
func ParseDocument(data []byte) (*Document, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if err := docSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	var top struct {
		Templates []string        `json:"effectLib"`
		Effects   json.RawMessage `json:"effects"`
	}
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	effects, err := setting.Members(top.Effects)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	doc := &Document{Templates: top.Templates}
	for p := effects.Oldest(); p != nil; p = p.Next() {
		e, err := parseEntry(p.Key, p.Value)
		if err != nil {
			log.Warn().Err(err).Str("effect", p.Key).Msg("saved effect unreadable")
			doc.Dropped = append(doc.Dropped, p.Key)
			continue
		}
		doc.Effects = append(doc.Effects, e)
	}
	return doc, nil
}

func parseEntry(name string, raw json.RawMessage) (Entry, error) {
	e := Entry{Name: name}
	v, err := decodeJSON(raw)
	if err != nil {
		return e, err
	}
	if err := effectSchema.Validate(v); err != nil {
		return e, err
	}
	err = json.Unmarshal(raw, &e)
	return e, err
}

// Export snapshots the catalog and every live instance.
func (r *Registry) Export() (*Document, error) {
	doc := &Document{Templates: r.Templates()}
	for _, inst := range r.Instances() {
		b, err := json.Marshal(inst.settings)
		if err != nil {
			return nil, fmt.Errorf("export %q: %w", inst.name, err)
		}
		doc.Effects = append(doc.Effects, Entry{Name: inst.name, Library: inst.Library(), Settings: b})
	}
	return doc, nil
}

// ImportResult describes what an Import dropped.
type ImportResult struct {
	Skipped          []string
	Rejected         []Rejection
	ManagerRecreated bool
}

// Import replaces every live instance with those of doc. Entries whose
// template is no longer registered are skipped. With strict set, a
// document recording a template that is no longer registered fails before
// anything is touched. When templates were registered since doc was
// written, the Manager instance is recreated so its type list includes
// them.
func (r *Registry) Import(doc *Document, strict bool) (ImportResult, error) {
	var res ImportResult
	if strict {
		for _, lib := range doc.Templates {
			if _, ok := r.templates[lib]; !ok {
				return res, fmt.Errorf("%w: saved state has template %q which is not registered", ErrUnknownTemplate, lib)
			}
		}
	}

	for _, name := range append([]string(nil), r.order...) {
		r.Delete(name)
	}
	res.Skipped = append(res.Skipped, doc.Dropped...)

	for _, e := range doc.Effects {
		if _, ok := r.templates[e.Library]; !ok {
			log.Warn().Str("effect", e.Name).Str("library", e.Library).Msg("skipped importing effect, template not registered")
			res.Skipped = append(res.Skipped, e.Name)
			continue
		}
		var overlay map[string]json.RawMessage
		if err := json.Unmarshal(e.Settings, &overlay); err != nil {
			log.Warn().Err(err).Str("effect", e.Name).Msg("skipped importing effect, bad settings")
			res.Skipped = append(res.Skipped, e.Name)
			continue
		}
		_, rejected, err := r.Create(e.Library, e.Name, overlay)
		if err != nil {
			log.Warn().Err(err).Str("effect", e.Name).Msg("skipped importing effect")
			res.Skipped = append(res.Skipped, e.Name)
			continue
		}
		for _, rej := range rejected {
			log.Warn().Err(rej.Err).Str("effect", rej.Effect).Str("setting", rej.Key).Msg("imported setting reset to default")
		}
		res.Rejected = append(res.Rejected, rejected...)
	}

	if r.catalogGrew(doc.Templates) {
		if _, ok := r.templates[ManagerLibrary]; ok {
			r.Delete(ManagerName)
			if _, _, err := r.Create(ManagerLibrary, ManagerName, nil); err != nil {
				return res, err
			}
			res.ManagerRecreated = true
		}
	}
	return res, nil
}

func (r *Registry) catalogGrew(saved []string) bool {
	known := make(map[string]bool, len(saved))
	for _, lib := range saved {
		known[lib] = true
	}
	for _, lib := range r.tmplOrder {
		if !known[lib] {
			return true
		}
	}
	return false
}
