package schema

import (
	"encoding/xml"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
)

// XML representation of a category specification. One file describes one
// category:
//
//	<Category cat="34" name="Transmission of Monoradar Service Messages"
//	          edition="1.27" date="2007-10">
//	  <DataItems>
//	    <DataItem id="010" name="Data Source Identifier" presence="mandatory">
//	      <Fixed>
//	        <Element name="SAC" bits="8"/>
//	        <Element name="SIC" bits="8"/>
//	      </Fixed>
//	    </DataItem>
//	    ...
//	  </DataItems>
//	  <UAPs default="default">
//	    <Variation name="default">
//	      <Item ref="010"/> <Item ref="-"/> ...
//	    </Variation>
//	    <Case item="020" field="TYP">
//	      <When value="0" use="plot"/>
//	      <When value="1" use="track"/>
//	    </Case>
//	  </UAPs>
//	</Category>
//
// Item bodies are one of <Fixed>, <Extended> (with <Octet> children),
// <Repetitive>, <RepetitiveGroup>, <RepetitiveGroupFX>, <Explicit> and
// <Compound> (with <SubItem> children). Field nodes are <Element> and
// <Spare>; table entries are <Entry value= meaning=> children of <Element>.

type xmlCategory struct {
	Cat     uint8  `xml:"cat,attr"`
	Name    string `xml:"name,attr"`
	Edition string `xml:"edition,attr"`
	Date    string `xml:"date,attr"`

	Items []xmlDataItem `xml:"DataItems>DataItem"`
	UAPs  *xmlUAPs      `xml:"UAPs"`
}

type xmlDataItem struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	Presence string `xml:"presence,attr"`

	Fixed      *xmlFieldList `xml:"Fixed"`
	Extended   *xmlExtended  `xml:"Extended"`
	Repetitive *xmlFieldList `xml:"Repetitive"`
	RepGroup   *xmlFieldList `xml:"RepetitiveGroup"`
	RepGroupFX *xmlFieldList `xml:"RepetitiveGroupFX"`
	Explicit   *struct{}     `xml:"Explicit"`
	Compound   *xmlCompound  `xml:"Compound"`
}

// xmlFieldList collects <Element> and <Spare> children in document order.
type xmlFieldList struct {
	Fields []xmlField `xml:",any"`
}

type xmlExtended struct {
	Octets []xmlFieldList `xml:"Octet"`
}

type xmlCompound struct {
	SubItems []xmlSubItem `xml:"SubItem"`
}

type xmlSubItem struct {
	Name   string     `xml:"name,attr"`
	Fields []xmlField `xml:",any"`
}

type xmlField struct {
	XMLName  xml.Name
	Name     string     `xml:"name,attr"`
	Bits     int        `xml:"bits,attr"`
	Encoding string     `xml:"encoding,attr"`
	Scale    float64    `xml:"scale,attr"`
	Unit     string     `xml:"unit,attr"`
	Min      *float64   `xml:"min,attr"`
	Max      *float64   `xml:"max,attr"`
	Entries  []xmlEntry `xml:"Entry"`
}

type xmlEntry struct {
	Value   uint64 `xml:"value,attr"`
	Meaning string `xml:"meaning,attr"`
}

type xmlUAPs struct {
	Default    string         `xml:"default,attr"`
	Variations []xmlVariation `xml:"Variation"`
	Case       *xmlCase       `xml:"Case"`
}

type xmlVariation struct {
	Name  string `xml:"name,attr"`
	Items []struct {
		Ref string `xml:"ref,attr"`
	} `xml:"Item"`
}

type xmlCase struct {
	Item  string `xml:"item,attr"`
	Field string `xml:"field,attr"`
	Whens []struct {
		Value uint64 `xml:"value,attr"`
		Use   string `xml:"use,attr"`
	} `xml:"When"`
}

// Parse reads one category specification from r.
func Parse(r io.Reader) (*Category, error) {
	var doc xmlCategory
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse category XML: %w", err)
	}
	return buildCategory(&doc)
}

// ParseFile reads one category specification from an XML file on disk.
func ParseFile(path string) (*Category, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spec: %w", err)
	}
	defer f.Close()
	cat, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// LoadAll parses every .xml file in fsys and registers the categories in a
// fresh Registry. Files are visited in name order.
func LoadAll(fsys fs.FS) (*Registry, error) {
	entries, err := fs.Glob(fsys, "*.xml")
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)

	reg := NewRegistry()
	for _, name := range entries {
		f, err := fsys.Open(name)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		cat, err := Parse(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		reg.Register(cat)
	}
	return reg, nil
}

func buildCategory(doc *xmlCategory) (*Category, error) {
	if doc.Cat == 0 {
		return nil, fmt.Errorf("<Category cat> attribute is missing or zero")
	}
	if doc.UAPs == nil || len(doc.UAPs.Variations) == 0 {
		return nil, fmt.Errorf("category %d: no <UAPs> variations", doc.Cat)
	}

	cat := &Category{
		Cat:        doc.Cat,
		Name:       doc.Name,
		Edition:    doc.Edition,
		Date:       doc.Date,
		Items:      make(map[string]*DataItem, len(doc.Items)),
		Variations: make(map[string][]string, len(doc.UAPs.Variations)),
	}

	for i := range doc.Items {
		item, err := buildItem(&doc.Items[i])
		if err != nil {
			return nil, fmt.Errorf("category %d: %w", doc.Cat, err)
		}
		cat.Items[item.ID] = item
	}

	cat.DefaultVariation = doc.UAPs.Default
	if cat.DefaultVariation == "" {
		cat.DefaultVariation = "default"
	}
	for _, v := range doc.UAPs.Variations {
		if v.Name == "" {
			return nil, fmt.Errorf("category %d: <Variation> missing name", doc.Cat)
		}
		uap := make([]string, 0, len(v.Items))
		for _, slot := range v.Items {
			ref := slot.Ref
			if ref == "" {
				ref = UnusedSlot
			}
			if !IsSentinelSlot(ref) {
				if _, ok := cat.Items[ref]; !ok {
					return nil, fmt.Errorf("category %d: UAP %q references unknown item %q", doc.Cat, v.Name, ref)
				}
			}
			uap = append(uap, ref)
		}
		cat.Variations[v.Name] = uap
	}
	if _, ok := cat.Variations[cat.DefaultVariation]; !ok {
		return nil, fmt.Errorf("category %d: default variation %q not defined", doc.Cat, cat.DefaultVariation)
	}

	if c := doc.UAPs.Case; c != nil {
		if c.Item == "" || c.Field == "" {
			return nil, fmt.Errorf("category %d: <Case> missing item or field", doc.Cat)
		}
		uc := &UapCase{ItemID: c.Item, Field: c.Field, Select: make(map[uint64]string, len(c.Whens))}
		for _, w := range c.Whens {
			if w.Use == "" {
				return nil, fmt.Errorf("category %d: <When> missing use", doc.Cat)
			}
			if _, ok := cat.Variations[w.Use]; !ok {
				return nil, fmt.Errorf("category %d: <When value=%d> selects unknown variation %q", doc.Cat, w.Value, w.Use)
			}
			uc.Select[w.Value] = w.Use
		}
		cat.Case = uc
	}

	return cat, nil
}

func buildItem(node *xmlDataItem) (*DataItem, error) {
	if node.ID == "" {
		return nil, fmt.Errorf("<DataItem> missing id")
	}
	item := &DataItem{ID: node.ID, Name: node.Name}

	switch node.Presence {
	case "", "optional":
		item.Presence = Optional
	case "mandatory":
		item.Presence = Mandatory
	case "conditional":
		item.Presence = Conditional
	default:
		return nil, fmt.Errorf("item %s: unknown presence %q", node.ID, node.Presence)
	}

	switch {
	case node.Fixed != nil:
		item.Kind = Fixed
		elems, bits, err := buildElements(node.ID, node.Fixed.Fields)
		if err != nil {
			return nil, err
		}
		if bits%8 != 0 {
			return nil, fmt.Errorf("item %s: Fixed element bits (%d) not a multiple of 8", node.ID, bits)
		}
		item.Elements = elems
		item.FixedBytes = bits / 8

	case node.Extended != nil:
		item.Kind = Extended
		if len(node.Extended.Octets) == 0 {
			return nil, fmt.Errorf("item %s: Extended has no <Octet> children", node.ID)
		}
		for i, oct := range node.Extended.Octets {
			elems, bits, err := buildElements(node.ID, oct.Fields)
			if err != nil {
				return nil, err
			}
			if bits != 7 {
				return nil, fmt.Errorf("item %s: Extended octet %d must sum to 7 bits, got %d", node.ID, i, bits)
			}
			item.Octets = append(item.Octets, Octet{Elements: elems})
		}

	case node.Repetitive != nil:
		item.Kind = Repetitive
		elems, _, err := buildElements(node.ID, node.Repetitive.Fields)
		if err != nil {
			return nil, err
		}
		if len(elems) != 1 || elems[0].Bits != 7 {
			return nil, fmt.Errorf("item %s: Repetitive needs a single 7-bit element", node.ID)
		}
		item.RepElement = elems[0]

	case node.RepGroup != nil:
		item.Kind = RepetitiveGroup
		elems, bits, err := buildElements(node.ID, node.RepGroup.Fields)
		if err != nil {
			return nil, err
		}
		if bits%8 != 0 {
			return nil, fmt.Errorf("item %s: RepetitiveGroup bits (%d) not a multiple of 8", node.ID, bits)
		}
		item.RepGroupElements = elems
		item.RepGroupBits = bits

	case node.RepGroupFX != nil:
		item.Kind = RepetitiveGroupFX
		elems, bits, err := buildElements(node.ID, node.RepGroupFX.Fields)
		if err != nil {
			return nil, err
		}
		if (bits+1)%8 != 0 {
			return nil, fmt.Errorf("item %s: RepetitiveGroupFX bits+FX (%d) not a multiple of 8", node.ID, bits+1)
		}
		item.RepGroupElements = elems
		item.RepGroupBits = bits

	case node.Explicit != nil:
		item.Kind = SP

	case node.Compound != nil:
		item.Kind = Compound
		for _, si := range node.Compound.SubItems {
			name := si.Name
			if name == "" {
				name = UnusedSlot
			}
			sub := CompoundSubItem{Name: name}
			if name != UnusedSlot {
				elems, bits, err := buildElements(node.ID+"/"+name, si.Fields)
				if err != nil {
					return nil, err
				}
				if bits%8 != 0 {
					return nil, fmt.Errorf("item %s: sub-item %s bits (%d) not a multiple of 8", node.ID, name, bits)
				}
				sub.Elements = elems
				sub.FixedBytes = bits / 8
			}
			item.SubItems = append(item.SubItems, sub)
		}
		if len(item.SubItems) == 0 {
			return nil, fmt.Errorf("item %s: Compound has no <SubItem> children", node.ID)
		}

	default:
		return nil, fmt.Errorf("item %s: no recognised structure element", node.ID)
	}

	return item, nil
}

func buildElements(ctx string, fields []xmlField) ([]Element, int, error) {
	var elems []Element
	total := 0
	for _, f := range fields {
		switch f.XMLName.Local {
		case "Spare":
			if f.Bits <= 0 {
				return nil, 0, fmt.Errorf("%s: <Spare> with bits=%d", ctx, f.Bits)
			}
			elems = append(elems, Element{Bits: f.Bits, Spare: true, Encoding: SpareEncoding})
			total += f.Bits
		case "Element":
			e, err := buildElement(ctx, f)
			if err != nil {
				return nil, 0, err
			}
			elems = append(elems, e)
			total += e.Bits
		default:
			return nil, 0, fmt.Errorf("%s: unexpected element <%s>", ctx, f.XMLName.Local)
		}
	}
	return elems, total, nil
}

func buildElement(ctx string, f xmlField) (Element, error) {
	if f.Name == "" {
		return Element{}, fmt.Errorf("%s: <Element> missing name", ctx)
	}
	if f.Bits <= 0 || f.Bits > 64 {
		return Element{}, fmt.Errorf("%s: element %s has bits=%d", ctx, f.Name, f.Bits)
	}

	e := Element{Name: f.Name, Bits: f.Bits, Scale: f.Scale, Unit: f.Unit}
	if e.Scale == 0 {
		e.Scale = 1
	}
	switch f.Encoding {
	case "", "raw":
		e.Encoding = Raw
	case "table":
		e.Encoding = Table
	case "unsigned_quantity":
		e.Encoding = UnsignedQuantity
	case "signed_quantity":
		e.Encoding = SignedQuantity
	case "string_octal":
		e.Encoding = StringOctal
	default:
		return Element{}, fmt.Errorf("%s: element %s has unknown encoding %q", ctx, f.Name, f.Encoding)
	}

	if f.Min != nil {
		e.Min = *f.Min
		e.HasRange = true
	}
	if f.Max != nil {
		e.Max = *f.Max
		e.HasRange = true
	}
	if len(f.Entries) > 0 {
		e.Table = make(map[uint64]string, len(f.Entries))
		for _, en := range f.Entries {
			e.Table[en.Value] = en.Meaning
		}
	}
	return e, nil
}
