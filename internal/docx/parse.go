package docx

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"path"
	"strings"
)

const (
	nsMain    = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsRelAttr = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

const (
	refDefault = "default"
	refFirst   = "first"
	refEven    = "even"
)

// refSpec is one header/footer reference found inside a sectPr element.
type refSpec struct {
	footer bool
	typ    string
	rid    string
}

type sectionSpec struct {
	refs []refSpec
}

// parsePart scans one WordprocessingML part and records, for every run,
// the byte offsets needed to rewrite its content in place later. The scan
// collects direct body paragraphs, top-level table cells row-major, and
// section header/footer references. Runs nested below hyperlinks, text
// boxes, or nested tables are left alone, as are their bytes.
func parsePart(name string, data []byte) (*part, error) {
	p := &part{name: name, data: data}
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		stack       []xml.Name
		last        int64
		tblDepth    int
		curTable    *docTable
		curRow      *docRow
		curCell     *docCell
		curPara     *Container
		paraDepth   int
		curRun      *Run
		runDepth    int
		inText      bool
		contentSeen bool
		curSect     *sectionSpec
		text        strings.Builder
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		off := dec.InputOffset()

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == nsMain {
				switch t.Name.Local {
				case "tbl":
					if tblDepth == 0 && isBlockParent(parent(stack)) {
						curTable = &docTable{}
					}
					tblDepth++
				case "tr":
					if tblDepth == 1 && curTable != nil {
						curRow = &docRow{}
						curTable.rows = append(curTable.rows, curRow)
					}
				case "tc":
					if tblDepth == 1 && curRow != nil {
						curCell = &docCell{}
						curRow.cells = append(curRow.cells, curCell)
					}
				case "p":
					if tblDepth == 0 && isBlockParent(parent(stack)) {
						curPara = &Container{part: p, kind: KindBody}
						p.paras = append(p.paras, curPara)
						paraDepth = len(stack) + 1
					} else if tblDepth == 1 && curCell != nil && isName(parent(stack), "tc") {
						curPara = &Container{part: p, kind: KindTableCell}
						curCell.paras = append(curCell.paras, curPara)
						paraDepth = len(stack) + 1
					}
				case "r":
					if curPara != nil && len(stack) == paraDepth {
						curRun = &Run{part: p, elemStart: last, startTagEnd: off, contentStart: off}
						curRun.setName(tagName(data[last:off]))
						runDepth = len(stack) + 1
						contentSeen = false
						text.Reset()
					}
				case "rPr":
					// Offsets are fixed up when the element closes.
				case "t":
					if curRun != nil && len(stack) == runDepth {
						inText = true
						contentSeen = true
					}
				case "tab":
					if curRun != nil && len(stack) == runDepth {
						text.WriteByte('\t')
						contentSeen = true
					}
				case "br", "cr":
					if curRun != nil && len(stack) == runDepth {
						text.WriteByte('\n')
						contentSeen = true
					}
				case "sectPr":
					if pr := parent(stack); isName(pr, "pPr") || isName(pr, "body") {
						curSect = &sectionSpec{}
					}
				case "headerReference", "footerReference":
					if curSect != nil {
						ref := refSpec{footer: t.Name.Local == "footerReference", typ: refDefault}
						for _, a := range t.Attr {
							switch {
							case a.Name.Local == "type":
								ref.typ = a.Value
							case a.Name.Local == "id" && a.Name.Space == nsRelAttr:
								ref.rid = a.Value
							}
						}
						if ref.rid != "" {
							curSect.refs = append(curSect.refs, ref)
						}
					}
				default:
					if curRun != nil && len(stack) == runDepth {
						contentSeen = true
					}
				}
			} else if curRun != nil && len(stack) == runDepth {
				contentSeen = true
			}
			stack = append(stack, t.Name)

		case xml.EndElement:
			stack = stack[:len(stack)-1]
			if t.Name.Space != nsMain {
				break
			}
			switch t.Name.Local {
			case "tbl":
				tblDepth--
				if tblDepth == 0 && curTable != nil {
					p.tables = append(p.tables, curTable)
					curTable, curRow, curCell = nil, nil, nil
				}
			case "tr":
				if tblDepth == 1 {
					curRow = nil
				}
			case "tc":
				if tblDepth == 1 {
					curCell = nil
				}
			case "p":
				if curPara != nil && len(stack)+1 == paraDepth {
					curPara = nil
				}
			case "r":
				if curRun != nil && len(stack)+1 == runDepth {
					curRun.elemEnd = off
					curRun.selfClosing = off == curRun.startTagEnd
					curRun.text = text.String()
					curPara.runs = append(curPara.runs, curRun)
					p.runs = append(p.runs, curRun)
					curRun = nil
				}
			case "rPr":
				if curRun != nil && len(stack) == runDepth && !contentSeen {
					curRun.contentStart = off
				}
			case "t":
				inText = false
			case "sectPr":
				if curSect != nil {
					p.sections = append(p.sections, *curSect)
					curSect = nil
				}
			}

		case xml.CharData:
			if inText && curRun != nil {
				text.Write(t)
			}
		}
		last = off
	}
	return p, nil
}

func parent(stack []xml.Name) xml.Name {
	if len(stack) == 0 {
		return xml.Name{}
	}
	return stack[len(stack)-1]
}

func isName(n xml.Name, local string) bool {
	return n.Space == nsMain && n.Local == local
}

func isBlockParent(n xml.Name) bool {
	if n.Space != nsMain {
		return false
	}
	return n.Local == "body" || n.Local == "hdr" || n.Local == "ftr"
}

// tagName extracts the raw (possibly prefixed) element name from the bytes
// of a start tag, so rewritten content reuses the document's own prefix.
func tagName(raw []byte) string {
	i := bytes.IndexByte(raw, '<')
	if i < 0 {
		return ""
	}
	for j := i + 1; j < len(raw); j++ {
		switch raw[j] {
		case ' ', '\t', '\r', '\n', '>', '/':
			return string(raw[i+1 : j])
		}
	}
	return string(raw[i+1:])
}

func parseRels(data []byte) (map[string]string, error) {
	var doc struct {
		Relationships []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(doc.Relationships))
	for _, rel := range doc.Relationships {
		out[rel.ID] = rel.Target
	}
	return out, nil
}

func resolvePartName(target string) string {
	if strings.HasPrefix(target, "/") {
		return path.Clean(strings.TrimPrefix(target, "/"))
	}
	return path.Clean(path.Join("word", target))
}
