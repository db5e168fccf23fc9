// Package gitlab annotates task work that links to merge requests.
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	gitlabapi "github.com/xanzy/go-gitlab"
)

const (
	DefaultBaseURL = "https://gitlab.com/api/v4"

	// links above this count are ignored
	maxLinks = 3
)

type User struct {
	ID       int
	Username string
}

type MergeRequest struct {
	ID      int
	Title   string
	State   string
	Changes int
	WebURL  string
	Author  *User
}

// Link is merge request reference found in text
type Link struct {
	Project string
	IID     int
}

// API is subset of go-gitlab used here
type API interface {
	GetMergeRequestChanges(pid interface{}, mergeRequest int, options ...gitlabapi.OptionFunc) (*gitlabapi.MergeRequest, *gitlabapi.Response, error)
}

type Client struct {
	api  API
	host string
	log  logrus.FieldLogger
}

// New creates client for gitlab instance at baseURL
func New(token, baseURL string, log logrus.FieldLogger) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrapf(err, "malformed gitlab url %q", baseURL)
	}

	api := gitlabapi.NewClient(&http.Client{}, token)
	if err := api.SetBaseURL(baseURL); err != nil {
		return nil, errors.Wrapf(err, "can not set gitlab url %q", baseURL)
	}
	return NewWithAPI(api.MergeRequests, u.Host, log), nil
}

func NewWithAPI(api API, host string, log logrus.FieldLogger) *Client {
	return &Client{api: api, host: host, log: log}
}

var linkRe = regexp.MustCompile(`https?://([^/\s]+)/(\S+?)(?:/-)?/merge_requests/(\d+)`)

// ParseLinks finds merge request links that point to host
func ParseLinks(text, host string) []Link {
	var links []Link
	seen := map[Link]struct{}{}
	for _, m := range linkRe.FindAllStringSubmatch(text, -1) {
		if !strings.EqualFold(m[1], host) {
			continue
		}
		iid, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		l := Link{Project: m[2], IID: iid}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		links = append(links, l)
	}
	return links
}

// MergeRequestInfo return title and changed file count for merge request
func (c *Client) MergeRequestInfo(project string, mergeRequest int) (MergeRequest, error) {
	mr, _, err := c.api.GetMergeRequestChanges(project, mergeRequest)
	if err != nil {
		return MergeRequest{}, err
	}

	cnt, err := strconv.Atoi(mr.ChangesCount)
	if err != nil {
		return MergeRequest{}, errors.Wrap(err, "can not parse number of changes for merge request")
	}

	var author *User
	if mr.Author.Username != "" {
		author = &User{
			ID:       mr.Author.ID,
			Username: mr.Author.Username,
		}
	}

	return MergeRequest{
		ID:      mr.ID,
		Title:   mr.Title,
		State:   mr.State,
		Changes: cnt,
		WebURL:  mr.WebURL,
		Author:  author,
	}, nil
}

// Describe summarizes merge requests linked from task work
func (c *Client) Describe(ctx context.Context, work string) (string, bool) {
	links := ParseLinks(work, c.host)
	if len(links) > maxLinks {
		links = links[:maxLinks]
	}

	var lines []string
	for _, l := range links {
		if ctx.Err() != nil {
			break
		}
		mr, err := c.MergeRequestInfo(l.Project, l.IID)
		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{"project": l.Project, "iid": l.IID}).Warn("can not get merge request")
			continue
		}
		line := fmt.Sprintf("%s!%d %q: %s, %d changed files", l.Project, l.IID, mr.Title, mr.State, mr.Changes)
		if mr.Author != nil {
			line += " by @" + mr.Author.Username
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "; "), true
}
