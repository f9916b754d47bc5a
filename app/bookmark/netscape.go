package bookmark

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrNoBookmarks = errors.New("no bookmarks found in file")

// Parser reads Netscape bookmark files (<DL><DT><H3>/<A> exports).
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Run(data []byte) ([]Entry, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bookmark file: %w", err)
	}

	root := findFirst(doc, atom.Dl)
	if root == nil {
		return nil, ErrNoBookmarks
	}

	var entries []Entry
	p.walkList(root, nil, &entries)

	if len(entries) == 0 {
		return nil, ErrNoBookmarks
	}
	return entries, nil
}

func (p *Parser) walkList(list *html.Node, folders []string, out *[]Entry) {
	consumed := make(map[*html.Node]bool)

	for c := list.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || consumed[c] {
			continue
		}
		switch c.DataAtom {
		case atom.Dt, atom.Li:
			if sub := p.walkItem(c, folders, out); sub != nil {
				consumed[sub] = true
			}
		case atom.A:
			p.addLink(c, folders, out)
		case atom.Dd:
			// descriptions
		default:
			p.walkList(c, folders, out)
		}
	}
}

// walkItem handles one list item and returns the sibling list it consumed,
// if the folder's list was not nested inside the item itself.
func (p *Parser) walkItem(item *html.Node, folders []string, out *[]Entry) *html.Node {
	var heading, sub *html.Node

	for c := item.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			heading = c
		case atom.A:
			p.addLink(c, folders, out)
		case atom.Dl:
			sub = c
		case atom.Dt:
			p.walkItem(c, folders, out)
		}
	}

	if heading == nil {
		if sub != nil {
			p.walkList(sub, folders, out)
		}
		return nil
	}

	var sibling *html.Node
	if sub == nil {
		sibling = nextList(item)
		sub = sibling
	}

	name := CleanGroupName(textContent(heading))
	if name != "" && !isDecorativeName(name) {
		folders = append(folders[:len(folders):len(folders)], name)
	}
	if sub != nil {
		p.walkList(sub, folders, out)
	}
	return sibling
}

func (p *Parser) addLink(a *html.Node, folders []string, out *[]Entry) {
	href := strings.TrimSpace(attr(a, "href"))
	if !IsValidURL(href) {
		return
	}

	groupName := UngroupedName
	if len(folders) > 0 {
		groupName = folders[len(folders)-1]
	}

	title := collapseSpace(textContent(a))
	if title == "" {
		title = href
	}

	entry := Entry{
		Title:         title,
		URL:           href,
		NormalizedURL: NormalizeURL(href),
		GroupName:     groupName,
		Action:        ActionAdd,
	}
	if added := attr(a, "add_date"); added != "" {
		if secs, err := strconv.ParseInt(added, 10, 64); err == nil && secs > 0 {
			t := time.Unix(secs, 0).UTC()
			entry.AddedAt = &t
		}
	}

	*out = append(*out, entry)
}

// nextList finds the definition list that follows a folder item, skipping
// whitespace and stray paragraph tags.
func nextList(item *html.Node) *html.Node {
	for s := item.NextSibling; s != nil; s = s.NextSibling {
		switch s.Type {
		case html.TextNode, html.CommentNode:
			continue
		case html.ElementNode:
			if s.DataAtom == atom.Dl {
				return s
			}
			if s.DataAtom == atom.P {
				continue
			}
			return nil
		}
	}
	return nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
