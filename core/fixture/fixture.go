// Package fixture generates random documents for the collections of a backend. It is
// used to seed development databases.
//
// Fields are filled according to their generator declared in the schema:
//
//	name, surname, company, address, city, state, zip, phone, date, host, email
//	constant:<value>     always value
//	generic:<prefix>     "<prefix> <n>" for the n-th document
//	oneOf:<a|b|c>        one of the listed values
//	afterDate:<field>    a date after the date in field
//
// Reference fields point to a random document of the referenced collection. Embedded
// lists get up to three generated documents. Optional fields are left out at random.
package fixture

import (
	"context"
	"embed"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/docrest/core/logger"
	"github.com/relabs-tech/docrest/core/pointers"
	"github.com/relabs-tech/docrest/core/registry"
	"github.com/relabs-tech/docrest/core/resource"
	"github.com/relabs-tech/docrest/core/schema"
	"github.com/relabs-tech/docrest/core/store"
)

//go:embed data/*.txt
var data embed.FS

// MaxCount is the exclusive upper bound of an explicit document count
const MaxCount = 1000

// dateSpread is the maximum distance of generated dates from now
const dateSpread = 100 * 24 * time.Hour

var (
	listsOnce sync.Once
	lists     map[string][]string
)

func wordList(name string) []string {
	listsOnce.Do(func() {
		lists = map[string][]string{}
		for _, list := range []string{"names", "surnames", "companies", "streets", "cities", "states", "hosts"} {
			raw, err := data.ReadFile("data/" + list + ".txt")
			if err != nil {
				panic(err)
			}
			for _, line := range strings.Split(string(raw), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					lists[list] = append(lists[list], line)
				}
			}
		}
	})
	return lists[name]
}

// Generator generates documents
type Generator struct {
	mutex    sync.Mutex
	rand     *rand.Rand
	now      func() time.Time
	registry *registry.Registry
}

// New returns a generator resolving references through reg. The same seed yields the
// same documents.
func New(reg *registry.Registry, seed int64) *Generator {
	return &Generator{
		rand:     rand.New(rand.NewSource(seed)),
		now:      time.Now,
		registry: reg,
	}
}

// between returns a random integer in [min, max]
func (g *Generator) between(min, max int) int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return min + g.rand.Intn(max-min+1)
}

func (g *Generator) pick(list []string) string {
	if len(list) == 0 {
		return ""
	}
	return list[g.between(0, len(list)-1)]
}

// Count returns the number of documents to generate for a requested count. Counts which
// are not set or too large are replaced with a random count between 50 and 100.
func (g *Generator) Count(count int) int {
	if count <= 0 || count >= MaxCount {
		return g.between(50, 100)
	}
	return count
}

// Check returns an error if s declares an unknown generator
func Check(s *schema.Schema) error {
	for _, f := range s.Fields {
		if f.Generator != "" {
			if _, _, err := parseGenerator(f.Generator); err != nil {
				return fmt.Errorf("schema %s: field %s: %w", s.Name, f.Name, err)
			}
		}
		if f.FieldKind() == schema.KindEmbedded && f.Schema != nil {
			if err := Check(f.Schema); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseGenerator(generator string) (name, argument string, err error) {
	name, argument, _ = strings.Cut(generator, ":")
	switch name {
	case "name", "surname", "company", "address", "city", "state", "zip", "phone", "date", "host", "email":
		return name, "", nil
	case "constant", "generic", "oneOf", "afterDate":
		if argument == "" {
			return "", "", fmt.Errorf("generator %s needs an argument", name)
		}
		return name, argument, nil
	}
	return "", "", fmt.Errorf("unknown generator %s", generator)
}

// Generate stores count generated documents through r and returns the number of stored
// documents. r must be a normal resource.
func (g *Generator) Generate(ctx context.Context, r *resource.Resource, count int) (int, error) {
	if r.Kind != resource.KindNormal {
		return 0, fmt.Errorf("cannot generate documents for %s resource %s", r.Kind, r.Key())
	}
	if err := Check(r.Schema); err != nil {
		return 0, err
	}
	count = g.Count(count)
	rlog := logger.FromContext(ctx)
	for i := 0; i < count; i++ {
		document, err := g.Document(ctx, r.Schema, i)
		if err != nil {
			return i, err
		}
		if _, err := r.SaveOne(ctx, document); err != nil {
			return i, fmt.Errorf("cannot save generated %s: %w", r.Name(), err)
		}
	}
	rlog.Infof("generated %d %s", count, r.Schema.PluralName())
	return count, nil
}

// Document generates the index-th document for s. It does not assign an identifier.
func (g *Generator) Document(ctx context.Context, s *schema.Schema, index int) (store.Document, error) {
	document := store.Document{}
	for i := range s.Fields {
		f := &s.Fields[i]
		if !f.Required && g.between(0, 100) <= 30 {
			continue
		}
		switch f.FieldKind() {
		case schema.KindReference:
			id, err := g.reference(ctx, f.Ref)
			if err != nil {
				return nil, err
			}
			if id != "" {
				document[f.Name] = id
			}
		case schema.KindReferenceList:
			var ids []interface{}
			for n := g.between(0, 3); n > 0; n-- {
				id, err := g.reference(ctx, f.Ref)
				if err != nil {
					return nil, err
				}
				if id != "" {
					ids = append(ids, id)
				}
			}
			if len(ids) > 0 {
				document[f.Name] = ids
			}
		case schema.KindEmbedded:
			subs := []interface{}{}
			for n := g.between(0, 3); n > 0; n-- {
				sub, err := g.Document(ctx, f.Schema, len(subs))
				if err != nil {
					return nil, err
				}
				sub[store.IDField] = store.NewID()
				subs = append(subs, map[string]interface{}(sub))
			}
			document[f.Name] = subs
		default:
			if f.Generator == "" {
				continue
			}
			value, err := g.value(f, index, document)
			if err != nil {
				return nil, err
			}
			if value != nil {
				document[f.Name] = value
			}
		}
	}
	return document, nil
}

// reference returns the identifier of a random document of the named model, or an empty
// string if the collection is empty
func (g *Generator) reference(ctx context.Context, name string) (string, error) {
	model, err := g.registry.Resolve(ctx, name)
	if err != nil {
		return "", err
	}
	count, err := model.Collection.Count(ctx, nil)
	if err != nil || count == 0 {
		return "", err
	}
	documents, err := model.Collection.Find(ctx, nil, store.FindOptions{
		Skip:       pointers.Int64Ptr(int64(g.between(0, int(count)-1))),
		Limit:      pointers.Int64Ptr(1),
		Projection: store.Projection{store.IDField},
	})
	if err != nil || len(documents) == 0 {
		return "", err
	}
	return documents[0].ID(), nil
}

func (g *Generator) value(f *schema.Field, index int, document store.Document) (interface{}, error) {
	name, argument, err := parseGenerator(f.Generator)
	if err != nil {
		return nil, err
	}
	switch name {
	case "name":
		return g.pick(wordList("names")), nil
	case "surname":
		return g.pick(wordList("surnames")), nil
	case "company":
		return g.pick(wordList("companies")), nil
	case "address":
		return fmt.Sprintf("%d %s st.", g.between(1, 100), g.pick(wordList("streets"))), nil
	case "city":
		return g.pick(wordList("cities")), nil
	case "state":
		return g.pick(wordList("states")), nil
	case "zip":
		return fmt.Sprintf("%d-%d", g.between(10000, 99999), g.between(1000, 9999)), nil
	case "phone":
		return fmt.Sprintf("+%d-%d-%d-%d-%d", g.between(100, 400), g.between(10, 99), g.between(100, 999),
			g.between(10, 99), g.between(10, 99)), nil
	case "date":
		offset := time.Duration(g.between(-int(dateSpread/time.Second), int(dateSpread/time.Second))) * time.Second
		return g.now().Add(offset).UTC().Format(time.RFC3339), nil
	case "host":
		return g.pick(wordList("hosts")), nil
	case "email":
		return strings.ToLower(g.pick(wordList("names"))) + "@" + g.pick(wordList("hosts")), nil
	case "constant":
		return convert(f, argument)
	case "generic":
		return argument + " " + strconv.Itoa(index+1), nil
	case "oneOf":
		return convert(f, g.pick(strings.Split(argument, "|")))
	case "afterDate":
		raw, _ := document[argument].(string)
		if raw == "" {
			return nil, nil
		}
		after, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", argument, err)
		}
		offset := time.Duration(g.between(1, int(dateSpread/time.Second))) * time.Second
		return after.Add(offset).UTC().Format(time.RFC3339), nil
	}
	return nil, fmt.Errorf("unknown generator %s", f.Generator)
}

// convert turns a literal into a value of the type of f
func convert(f *schema.Field, literal string) (interface{}, error) {
	switch f.Type {
	case schema.TypeNumber:
		return strconv.ParseFloat(literal, 64)
	case schema.TypeInteger:
		return strconv.ParseInt(literal, 10, 64)
	case schema.TypeBoolean:
		return strconv.ParseBool(literal)
	}
	return literal, nil
}
