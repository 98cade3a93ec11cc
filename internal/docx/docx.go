// Package docx reads and rewrites WordprocessingML archives. Only run
// content is ever rewritten; every untouched byte of the archive, including
// formatting properties, is carried over verbatim.
package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotArchive          = errors.New("not a zip archive")
	ErrMissingDocumentPart = errors.New("missing word/document.xml")
)

// Kind classifies where a container was found in the document.
type Kind int

const (
	KindBody Kind = iota
	KindTableCell
	KindHeader
	KindFooter
	KindHeaderTableCell
	KindFooterTableCell
	KindFirstPageHeader
	KindFirstPageFooter
	KindEvenPageHeader
	KindEvenPageFooter
)

func (k Kind) String() string {
	switch k {
	case KindBody:
		return "body"
	case KindTableCell:
		return "table"
	case KindHeader:
		return "header"
	case KindFooter:
		return "footer"
	case KindHeaderTableCell:
		return "header-table"
	case KindFooterTableCell:
		return "footer-table"
	case KindFirstPageHeader:
		return "first-page-header"
	case KindFirstPageFooter:
		return "first-page-footer"
	case KindEvenPageHeader:
		return "even-page-header"
	case KindEvenPageFooter:
		return "even-page-footer"
	}
	return "unknown"
}

// Run is a maximal uniform-formatting span inside a container. Its
// properties element is never touched; SetText rewrites only the content.
type Run struct {
	part *part
	text string

	dirty       bool
	elemStart   int64
	startTagEnd int64
	contentStart int64
	elemEnd     int64
	selfClosing bool
	nameRaw     string
	prefix      string
}

func (r *Run) Text() string { return r.text }

func (r *Run) SetText(text string) {
	if text == r.text {
		return
	}
	r.text = text
	r.dirty = true
	r.part.dirty = true
}

func (r *Run) setName(name string) {
	r.nameRaw = name
	if idx := strings.IndexByte(name, ':'); idx >= 0 {
		r.prefix = name[:idx+1]
	}
}

// Container is a paragraph-equivalent ordered sequence of runs.
// Concatenating its run texts yields the container's plain text.
type Container struct {
	part *part
	kind Kind
	runs []*Run
}

func (c *Container) Kind() Kind   { return c.kind }
func (c *Container) Runs() []*Run { return c.runs }

func (c *Container) Text() string {
	var b strings.Builder
	for _, r := range c.runs {
		b.WriteString(r.text)
	}
	return b.String()
}

type docCell struct {
	paras []*Container
}

type docRow struct {
	cells []*docCell
}

type docTable struct {
	rows []*docRow
}

type part struct {
	name     string
	data     []byte
	dirty    bool
	paras    []*Container
	tables   []*docTable
	runs     []*Run
	sections []sectionSpec
}

type section struct {
	header      *part
	footer      *part
	firstHeader *part
	firstFooter *part
	evenHeader  *part
	evenFooter  *part
}

// Document is an open archive plus the canonical ordered container list:
// body paragraphs, table cells row-major, then per section the header and
// footer paragraphs with first/even-page variants. The order is computed
// once at open and reused for every search and replace.
type Document struct {
	zr         *zip.Reader
	parts      map[string]*part
	body       *part
	sections   []*section
	containers []*Container
}

func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return OpenBytes(data)
}

func OpenBytes(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArchive, err)
	}
	docData, err := readPart(zr, "word/document.xml")
	if err != nil {
		return nil, ErrMissingDocumentPart
	}
	body, err := parsePart("word/document.xml", docData)
	if err != nil {
		return nil, fmt.Errorf("parse word/document.xml: %w", err)
	}
	d := &Document{
		zr:    zr,
		parts: map[string]*part{body.name: body},
		body:  body,
	}

	rels := map[string]string{}
	if relData, err := readPart(zr, "word/_rels/document.xml.rels"); err == nil {
		if parsed, err := parseRels(relData); err == nil {
			rels = parsed
		}
	}
	for _, spec := range body.sections {
		sec := &section{}
		for _, ref := range spec.refs {
			target, ok := rels[ref.rid]
			if !ok {
				continue
			}
			pt, err := d.loadPart(resolvePartName(target))
			if err != nil {
				return nil, err
			}
			if pt == nil {
				continue
			}
			sec.assign(ref, pt)
		}
		d.sections = append(d.sections, sec)
	}
	d.assemble()
	return d, nil
}

// Validate reports whether data opens as a structurally sound document
// archive. It parses everything Open would parse and discards the result.
func Validate(data []byte) error {
	_, err := OpenBytes(data)
	return err
}

func (s *section) assign(ref refSpec, pt *part) {
	switch {
	case !ref.footer && ref.typ == refDefault:
		s.header = pt
	case ref.footer && ref.typ == refDefault:
		s.footer = pt
	case !ref.footer && ref.typ == refFirst:
		s.firstHeader = pt
	case ref.footer && ref.typ == refFirst:
		s.firstFooter = pt
	case !ref.footer && ref.typ == refEven:
		s.evenHeader = pt
	case ref.footer && ref.typ == refEven:
		s.evenFooter = pt
	}
}

func (d *Document) loadPart(name string) (*part, error) {
	if pt, ok := d.parts[name]; ok {
		return pt, nil
	}
	data, err := readPart(d.zr, name)
	if err != nil {
		// A dangling reference is tolerated; the part simply has no text.
		return nil, nil
	}
	pt, err := parsePart(name, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	d.parts[name] = pt
	return pt, nil
}

// assemble flattens the parsed parts into the canonical traversal order.
// Each header/footer part is visited at most once even when several
// sections reference it.
func (d *Document) assemble() {
	out := make([]*Container, 0, len(d.body.paras))
	out = append(out, d.body.paras...)
	for _, tbl := range d.body.tables {
		for _, row := range tbl.rows {
			for _, cell := range row.cells {
				out = append(out, cell.paras...)
			}
		}
	}

	visited := map[*part]bool{d.body: true}
	hf := func(pt *part, paraKind, tableKind Kind, includeTables bool) {
		if pt == nil || visited[pt] {
			return
		}
		visited[pt] = true
		for _, c := range pt.paras {
			c.kind = paraKind
			out = append(out, c)
		}
		if !includeTables {
			return
		}
		for _, tbl := range pt.tables {
			for _, row := range tbl.rows {
				for _, cell := range row.cells {
					for _, c := range cell.paras {
						c.kind = tableKind
						out = append(out, c)
					}
				}
			}
		}
	}
	for _, sec := range d.sections {
		hf(sec.header, KindHeader, KindHeaderTableCell, true)
		hf(sec.footer, KindFooter, KindFooterTableCell, true)
		hf(sec.firstHeader, KindFirstPageHeader, 0, false)
		hf(sec.firstFooter, KindFirstPageFooter, 0, false)
		hf(sec.evenHeader, KindEvenPageHeader, 0, false)
		hf(sec.evenFooter, KindEvenPageFooter, 0, false)
	}
	d.containers = out
}

// Containers returns the canonical ordered container list. The slice is
// shared; callers must not modify it.
func (d *Document) Containers() []*Container {
	return d.containers
}

// Modified reports whether any run has been rewritten since open.
func (d *Document) Modified() bool {
	for _, pt := range d.parts {
		if pt.dirty {
			return true
		}
	}
	return false
}

// FullText extracts the readable text for analysis: non-blank body
// paragraphs, table rows as pipe-joined cells, and the main header/footer
// lines of each section tagged with their origin.
func (d *Document) FullText() string {
	var lines []string
	for _, c := range d.body.paras {
		if strings.TrimSpace(c.Text()) != "" {
			lines = append(lines, c.Text())
		}
	}
	for _, tbl := range d.body.tables {
		for _, row := range tbl.rows {
			var cells []string
			for _, cell := range row.cells {
				if txt := strings.TrimSpace(cellText(cell)); txt != "" {
					cells = append(cells, txt)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " | "))
			}
		}
	}
	visited := map[*part]bool{}
	for _, sec := range d.sections {
		if sec.header != nil && !visited[sec.header] {
			visited[sec.header] = true
			for _, c := range sec.header.paras {
				if strings.TrimSpace(c.Text()) != "" {
					lines = append(lines, "[HEADER] "+c.Text())
				}
			}
		}
		if sec.footer != nil && !visited[sec.footer] {
			visited[sec.footer] = true
			for _, c := range sec.footer.paras {
				if strings.TrimSpace(c.Text()) != "" {
					lines = append(lines, "[FOOTER] "+c.Text())
				}
			}
		}
	}
	return strings.Join(lines, "\n")
}

func cellText(cell *docCell) string {
	texts := make([]string, 0, len(cell.paras))
	for _, c := range cell.paras {
		texts = append(texts, c.Text())
	}
	return strings.Join(texts, "\n")
}

// Bytes renders the archive with all pending run edits applied. Parts
// without edits are copied raw, compression and all.
func (d *Document) Bytes() ([]byte, error) {
	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, f := range d.zr.File {
		if pt, ok := d.parts[f.Name]; ok && pt.dirty {
			hdr := f.FileHeader
			hdr.Method = zip.Deflate
			w, err := zw.CreateHeader(&hdr)
			if err != nil {
				zw.Close()
				return nil, err
			}
			if _, err := w.Write(pt.render()); err != nil {
				zw.Close()
				return nil, err
			}
			continue
		}
		if err := zw.Copy(f); err != nil {
			zw.Close()
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// SaveTo writes the rendered archive atomically: full temp write, sync,
// then rename into place.
func (d *Document) SaveTo(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".docx-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("part %s not found", name)
}
