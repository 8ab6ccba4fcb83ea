package object

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Participant is one "name <email> timestamp tz" line in a commit, the
// shared shape for both the author and committer fields.
type Participant struct {
	Name     string
	Email    string
	Time     int64 // seconds since the Unix epoch
	TZOffset int   // minutes east of UTC, may be negative
}

// String renders the participant in its canonical wire form, e.g.
// "Ada Lovelace <ada@example.com> 1700000000 +0100".
func (p Participant) String() string {
	sign := '+'
	offset := p.TZOffset
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%s <%s> %d %c%02d%02d", p.Name, p.Email, p.Time, sign, offset/60, offset%60)
}

func parseParticipant(line string) (Participant, error) {
	open := strings.IndexByte(line, '<')
	close := strings.IndexByte(line, '>')
	if open < 0 || close < open {
		return Participant{}, fmt.Errorf("%w: malformed participant line %q", ErrBadFormat, line)
	}
	name := strings.TrimSpace(line[:open])
	email := line[open+1 : close]

	rest := strings.TrimSpace(line[close+1:])
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return Participant{}, fmt.Errorf("%w: malformed participant timestamp %q", ErrBadFormat, rest)
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Participant{}, fmt.Errorf("%w: participant timestamp: %v", ErrBadFormat, err)
	}
	tz := fields[1]
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return Participant{}, fmt.Errorf("%w: malformed timezone offset %q", ErrBadFormat, tz)
	}
	hours, err := strconv.Atoi(tz[1:3])
	if err != nil {
		return Participant{}, fmt.Errorf("%w: timezone hours: %v", ErrBadFormat, err)
	}
	minutes, err := strconv.Atoi(tz[3:5])
	if err != nil {
		return Participant{}, fmt.Errorf("%w: timezone minutes: %v", ErrBadFormat, err)
	}
	offset := hours*60 + minutes
	if tz[0] == '-' {
		offset = -offset
	}

	return Participant{Name: name, Email: email, Time: ts, TZOffset: offset}, nil
}

// Commit is a parsed Git commit object.
type Commit struct {
	Tree      ID
	Parents   []ID
	Author    Participant
	Committer Participant
	Message   string
}

// ParseCommit parses a commit object's raw payload: a run of
// "key value" header lines (tree, zero or more parent, author, committer),
// a blank line, and the free-form message.
func ParseCommit(data []byte) (Commit, error) {
	sep := bytes.Index(data, []byte("\n\n"))
	if sep < 0 {
		return Commit{}, fmt.Errorf("%w: commit missing header/message separator", ErrBadFormat)
	}
	header := string(data[:sep])
	message := string(data[sep+2:])

	var c Commit
	haveTree, haveAuthor, haveCommitter := false, false, false
	for _, line := range strings.Split(header, "\n") {
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, " ")
		if !ok {
			return Commit{}, fmt.Errorf("%w: malformed commit header line %q", ErrBadFormat, line)
		}
		switch key {
		case "tree":
			id, err := ParseID(value)
			if err != nil {
				return Commit{}, fmt.Errorf("%w: commit tree: %v", ErrBadFormat, err)
			}
			c.Tree = id
			haveTree = true
		case "parent":
			id, err := ParseID(value)
			if err != nil {
				return Commit{}, fmt.Errorf("%w: commit parent: %v", ErrBadFormat, err)
			}
			c.Parents = append(c.Parents, id)
		case "author":
			p, err := parseParticipant(value)
			if err != nil {
				return Commit{}, err
			}
			c.Author = p
			haveAuthor = true
		case "committer":
			p, err := parseParticipant(value)
			if err != nil {
				return Commit{}, err
			}
			c.Committer = p
			haveCommitter = true
		default:
			// Unrecognised headers (gpgsig, mergetag, encoding, ...) are
			// preserved on the wire but carry no semantics this package
			// needs, so they are skipped rather than rejected.
		}
	}
	if !haveTree {
		return Commit{}, fmt.Errorf("%w: commit missing tree header", ErrBadFormat)
	}
	if !haveAuthor {
		return Commit{}, fmt.Errorf("%w: commit missing author header", ErrBadFormat)
	}
	if !haveCommitter {
		return Commit{}, fmt.Errorf("%w: commit missing committer header", ErrBadFormat)
	}
	c.Message = message
	return c, nil
}

// Marshal serialises a commit back to its canonical wire form.
func (c Commit) Marshal() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(&b, "parent %s\n", p)
	}
	fmt.Fprintf(&b, "author %s\n", c.Author)
	fmt.Fprintf(&b, "committer %s\n", c.Committer)
	b.WriteByte('\n')
	b.WriteString(c.Message)
	return []byte(b.String())
}
