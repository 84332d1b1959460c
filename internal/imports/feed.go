package imports

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
)

// Feed is a partner price list.
type Feed struct {
	Shop       string         `yaml:"shop"`
	Categories []FeedCategory `yaml:"categories"`
	Goods      []FeedGood     `yaml:"goods"`
}

type FeedCategory struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// FeedGood is one offer row. ID is the shop's own identifier and becomes
// ProductInfo.ExternalID.
type FeedGood struct {
	ID         int64           `yaml:"id"`
	Category   int64           `yaml:"category"`
	Model      string          `yaml:"model"`
	Name       string          `yaml:"name"`
	Price      decimal.Decimal `yaml:"price"`
	PriceRRC   decimal.Decimal `yaml:"price_rrc"`
	Quantity   int             `yaml:"quantity"`
	Parameters map[string]any  `yaml:"parameters"`
}

// ParseFeed decodes and validates a YAML price list. Row level problems are
// left for the importer so one bad good does not reject the whole file.
func ParseFeed(r io.Reader) (*Feed, error) {
	var feed Feed
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&feed); err != nil {
		if err == io.EOF {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price list is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "price list is not valid yaml").
			WithDetails(map[string][]string{"file": {err.Error()}})
	}

	feed.Shop = strings.TrimSpace(feed.Shop)
	problems := map[string][]string{}
	if feed.Shop == "" {
		problems["shop"] = append(problems["shop"], "is required")
	}
	seen := map[int64]bool{}
	for i, c := range feed.Categories {
		feed.Categories[i].Name = strings.TrimSpace(c.Name)
		if feed.Categories[i].Name == "" {
			problems["categories"] = append(problems["categories"], fmt.Sprintf("category %d has no name", c.ID))
		}
		if seen[c.ID] {
			problems["categories"] = append(problems["categories"], fmt.Sprintf("category %d is listed twice", c.ID))
		}
		seen[c.ID] = true
	}
	if len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price list rejected").WithDetails(problems)
	}
	return &feed, nil
}

// CategoryName resolves a good's category id against the feed's categories.
func (f *Feed) CategoryName(id int64) (string, bool) {
	for _, c := range f.Categories {
		if c.ID == id {
			return c.Name, true
		}
	}
	return "", false
}

func (g FeedGood) validate() error {
	switch {
	case strings.TrimSpace(g.Name) == "":
		return fmt.Errorf("name is required")
	case g.Quantity < 0:
		return fmt.Errorf("quantity must not be negative")
	case g.Price.IsNegative():
		return fmt.Errorf("price must not be negative")
	case g.PriceRRC.IsNegative():
		return fmt.Errorf("price_rrc must not be negative")
	}
	return nil
}

// parameterPair is one attribute in stable name order.
type parameterPair struct {
	Name  string
	Value string
}

func (g FeedGood) sortedParameters() []parameterPair {
	names := make([]string, 0, len(g.Parameters))
	for name := range g.Parameters {
		if strings.TrimSpace(name) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]parameterPair, 0, len(names))
	for _, name := range names {
		out = append(out, parameterPair{Name: strings.TrimSpace(name), Value: formatValue(g.Parameters[name])})
	}
	return out
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case int:
		return strconv.Itoa(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
