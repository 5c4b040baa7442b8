package analyzer

import "strings"

// ParseSQLite reads the detail column of EXPLAIN QUERY PLAN, e.g.
//
//	SCAN users
//	SEARCH users USING INDEX email_idx (email=?)
//	SEARCH users USING INTEGER PRIMARY KEY (rowid=?)
//	USE TEMP B-TREE FOR ORDER BY
func ParseSQLite(lines []string) *Plan {
	p := &Plan{Driver: "sqlite", Raw: strings.Join(lines, "\n")}
	for _, line := range lines {
		p.sqliteLine(line)
	}
	return p
}

func (p *Plan) sqliteLine(line string) {
	line = strings.TrimSpace(line)
	upper := strings.ToUpper(line)

	switch {
	case strings.HasPrefix(upper, "USE TEMP B-TREE FOR ORDER BY"),
		strings.HasPrefix(upper, "USE TEMP B-TREE FOR RIGHT PART OF ORDER BY"):
		p.Filesort = true
		return
	case strings.HasPrefix(upper, "USE TEMP B-TREE"):
		p.TempTable = true
		return
	}

	for _, marker := range []string{"USING COVERING INDEX ", "USING INDEX "} {
		if i := strings.Index(upper, marker); i >= 0 {
			p.useIndex(firstWord(line[i+len(marker):]))
			return
		}
	}
	switch {
	case strings.Contains(upper, "USING INTEGER PRIMARY KEY"),
		strings.Contains(upper, "USING PRIMARY KEY"):
		p.useIndex("PRIMARY KEY")
	case strings.Contains(upper, "USING AUTOMATIC"):
		p.useIndex("AUTOMATIC INDEX")
	case strings.HasPrefix(upper, "SCAN "):
		p.FullScan = true
	}
}
