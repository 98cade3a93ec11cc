package docx

import (
	"bytes"
	"sort"
	"strings"
)

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// splice replaces part bytes in [start, end) with repl.
type splice struct {
	start int64
	end   int64
	repl  []byte
}

// render applies the pending run edits to the part's original bytes.
// Every byte outside a rewritten run's content range is emitted untouched.
func (p *part) render() []byte {
	var splices []splice
	for _, r := range p.runs {
		if r.dirty {
			splices = append(splices, r.splice())
		}
	}
	sort.Slice(splices, func(i, j int) bool { return splices[i].start < splices[j].start })

	var out bytes.Buffer
	out.Grow(len(p.data))
	var prev int64
	for _, sp := range splices {
		out.Write(p.data[prev:sp.start])
		out.Write(sp.repl)
		prev = sp.end
	}
	out.Write(p.data[prev:])
	return out.Bytes()
}

func (r *Run) splice() splice {
	content := renderRunContent(r.text, r.prefix)
	var b bytes.Buffer
	if r.selfClosing {
		// The original element was <r/>; reopen it so content fits inside.
		tag := r.part.data[r.elemStart:r.startTagEnd]
		idx := bytes.LastIndexByte(tag, '/')
		b.Write(tag[:idx])
		b.WriteByte('>')
		b.Write(content)
		b.WriteString("</" + r.nameRaw + ">")
		return splice{start: r.elemStart, end: r.elemEnd, repl: b.Bytes()}
	}
	b.Write(content)
	b.WriteString("</" + r.nameRaw + ">")
	return splice{start: r.contentStart, end: r.elemEnd, repl: b.Bytes()}
}

// renderRunContent serializes run text back to content elements, mapping
// tabs and newlines to their dedicated elements. Empty text yields no
// content at all, leaving a properties-only run.
func renderRunContent(text, prefix string) []byte {
	var b bytes.Buffer
	flush := func(seg string) {
		if seg == "" {
			return
		}
		b.WriteString("<" + prefix + `t xml:space="preserve">`)
		b.WriteString(xmlEscaper.Replace(seg))
		b.WriteString("</" + prefix + "t>")
	}
	start := 0
	for i, ch := range text {
		switch ch {
		case '\t':
			flush(text[start:i])
			b.WriteString("<" + prefix + "tab/>")
			start = i + 1
		case '\n':
			flush(text[start:i])
			b.WriteString("<" + prefix + "br/>")
			start = i + 1
		}
	}
	flush(text[start:])
	return b.Bytes()
}
