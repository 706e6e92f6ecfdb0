// Package spreadsheet reads hospital rows out of the NHI OpenDocument spreadsheets
package spreadsheet

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	odsContentFile = "content.xml"

	nsTable = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"
	nsText  = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"

	// Sheets pad the table with a final row/column repeated up to the sheet limits.
	// Trailing empty repeats are capped to keep that padding out of memory.
	maxEmptyRepeat = 1000
)

// ErrNoTable is returned when a document has no table:table element
var ErrNoTable = errors.New("spreadsheet has no table")

// ReadODS returns the first table of an OpenDocument spreadsheet as rows of cell text
func ReadODS(path string) ([][]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != odsContentFile {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in %s: %w", odsContentFile, path, err)
		}
		defer rc.Close()

		rows, err := parseContent(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return rows, nil
	}

	return nil, fmt.Errorf("%s: missing %s", path, odsContentFile)
}

// parseContent walks content.xml and collects the cells of the first table
func parseContent(r io.Reader) ([][]string, error) {
	dec := xml.NewDecoder(r)

	var (
		rows      [][]string
		row       []string
		rowRepeat int
		cell      strings.Builder
		colRepeat int
		inTable   bool
		inCell    bool
		inPara    bool
		paragraph int
		done      bool
	)

	for !done {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == nsTable && t.Name.Local == "table":
				inTable = true
			case !inTable:
			case t.Name.Space == nsTable && t.Name.Local == "table-row":
				row = row[:0:0]
				rowRepeat = repeatAttr(t, "number-rows-repeated")
			case t.Name.Space == nsTable && (t.Name.Local == "table-cell" || t.Name.Local == "covered-table-cell"):
				inCell = true
				cell.Reset()
				paragraph = 0
				colRepeat = repeatAttr(t, "number-columns-repeated")
			case inCell && t.Name.Space == nsText && t.Name.Local == "p":
				if paragraph > 0 {
					cell.WriteByte('\n')
				}
				paragraph++
				inPara = true
			case inCell && t.Name.Space == nsText && t.Name.Local == "s":
				cell.WriteString(strings.Repeat(" ", repeatAttrNS(t, nsText, "c")))
			case inCell && t.Name.Space == nsText && t.Name.Local == "tab":
				cell.WriteByte('\t')
			case inCell && t.Name.Space == nsText && t.Name.Local == "line-break":
				cell.WriteByte('\n')
			}

		case xml.CharData:
			// Only paragraph text counts, layout whitespace between tags does not
			if inCell && inPara {
				cell.Write(t)
			}

		case xml.EndElement:
			if !inTable {
				continue
			}
			switch {
			case t.Name.Space == nsTable && t.Name.Local == "table":
				done = true
			case inCell && t.Name.Space == nsText && t.Name.Local == "p":
				inPara = false
			case t.Name.Space == nsTable && (t.Name.Local == "table-cell" || t.Name.Local == "covered-table-cell"):
				inCell = false
				value := cell.String()
				if value == "" {
					colRepeat = min(colRepeat, maxEmptyRepeat)
				}
				for range colRepeat {
					row = append(row, value)
				}
			case t.Name.Space == nsTable && t.Name.Local == "table-row":
				row = trimTrailingEmpty(row)
				if len(row) == 0 {
					rowRepeat = min(rowRepeat, maxEmptyRepeat)
				}
				for range rowRepeat {
					rows = append(rows, append([]string(nil), row...))
				}
			}
		}
	}

	if !inTable {
		return nil, ErrNoTable
	}

	// Drop the empty padding rows at the end of the sheet
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows, nil
}

func repeatAttr(el xml.StartElement, local string) int {
	return repeatAttrNS(el, nsTable, local)
}

// repeatAttrNS reads a positive count attribute, defaulting to 1
func repeatAttrNS(el xml.StartElement, space, local string) int {
	for _, attr := range el.Attr {
		if attr.Name.Space == space && attr.Name.Local == local {
			n, err := strconv.Atoi(attr.Value)
			if err != nil || n < 1 {
				return 1
			}
			return n
		}
	}
	return 1
}

func trimTrailingEmpty(row []string) []string {
	for len(row) > 0 && row[len(row)-1] == "" {
		row = row[:len(row)-1]
	}
	return row
}
