package plan

import "github.com/viant/afs"

type Option func(*Service)

// WithRootNodeName sets the document key holding the node tree.
func WithRootNodeName(name string) Option {
	return func(s *Service) {
		s.rootNodeName = name
	}
}

// WithBaseURL sets the base URL relative plan locations resolve against.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.baseURL = baseURL
	}
}

// WithFS sets the file service used to fetch plan documents.
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}
