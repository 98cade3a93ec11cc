// Package docxtest assembles minimal WordprocessingML archives in memory
// so tests can exercise real documents without fixture files on disk.
package docxtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"strings"
)

const (
	nsMain = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsRel  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

const contentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`</Types>`

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// Run describes one run to render inside a paragraph.
type Run struct {
	Text string
	Bold bool
}

func Plain(text string) Run { return Run{Text: text} }

func Bold(text string) Run { return Run{Text: text, Bold: true} }

// Para renders a paragraph element from its runs.
func Para(runs ...Run) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for _, r := range runs {
		b.WriteString("<w:r>")
		if r.Bold {
			b.WriteString("<w:rPr><w:b/></w:rPr>")
		}
		b.WriteString(`<w:t xml:space="preserve">` + escaper.Replace(r.Text) + `</w:t>`)
		b.WriteString("</w:r>")
	}
	b.WriteString("</w:p>")
	return b.String()
}

// Table renders a table element; each row is a slice of plain-text cells.
func Table(rows ...[]string) string {
	var b strings.Builder
	b.WriteString("<w:tbl>")
	for _, row := range rows {
		b.WriteString("<w:tr>")
		for _, cell := range row {
			b.WriteString("<w:tc>" + Para(Plain(cell)) + "</w:tc>")
		}
		b.WriteString("</w:tr>")
	}
	b.WriteString("</w:tbl>")
	return b.String()
}

func SectPr(refs ...string) string {
	return "<w:sectPr>" + strings.Join(refs, "") + "</w:sectPr>"
}

func HeaderRef(typ, rid string) string {
	return fmt.Sprintf(`<w:headerReference w:type=%q r:id=%q/>`, typ, rid)
}

func FooterRef(typ, rid string) string {
	return fmt.Sprintf(`<w:footerReference w:type=%q r:id=%q/>`, typ, rid)
}

func DocumentXML(blocks ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:document xmlns:w="` + nsMain + `" xmlns:r="` + nsRel + `">` +
		`<w:body>` + strings.Join(blocks, "") + `</w:body></w:document>`
}

func HeaderXML(blocks ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:hdr xmlns:w="` + nsMain + `">` + strings.Join(blocks, "") + `</w:hdr>`
}

func FooterXML(blocks ...string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<w:ftr xmlns:w="` + nsMain + `">` + strings.Join(blocks, "") + `</w:ftr>`
}

// Rels renders a relationships part from id→target pairs; the relationship
// type is inferred from the target name.
func Rels(entries map[string]string) string {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	for _, id := range ids {
		target := entries[id]
		kind := "header"
		if strings.Contains(target, "footer") {
			kind = "footer"
		}
		fmt.Fprintf(&b, `<Relationship Id=%q Type=%q Target=%q/>`, id, nsRel+"/"+kind, target)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

// Archive zips the given part name→content pairs into a document archive,
// adding [Content_Types].xml when absent. Entry order is deterministic.
func Archive(parts map[string]string) []byte {
	all := map[string]string{"[Content_Types].xml": contentTypes}
	for name, data := range parts {
		all[name] = data
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write([]byte(all[name])); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Document builds a complete single-part archive from body blocks.
func Document(blocks ...string) []byte {
	return Archive(map[string]string{"word/document.xml": DocumentXML(blocks...)})
}
