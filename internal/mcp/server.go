// Package mcp exposes scanning over the Model Context Protocol so
// editor agents can run rules without shelling out to the CLI.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/andersk/semgrep/internal/config"
	"github.com/andersk/semgrep/internal/engine"
	rerr "github.com/andersk/semgrep/internal/errors"
	"github.com/andersk/semgrep/internal/matcher"
	"github.com/andersk/semgrep/internal/parser"
	"github.com/andersk/semgrep/internal/rule"
	"github.com/andersk/semgrep/internal/scan"
	"github.com/andersk/semgrep/internal/types"
)

const serverVersion = "0.1.0"

// Server wires the scanner into an MCP stdio server.
type Server struct {
	cfg    *config.Config
	server *mcp.Server
}

// NewServer builds the server and registers its tools.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg: cfg,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "semgrep-mcp-server",
			Version: serverVersion,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "scan",
		Description: "Run the configured rules over the project and return findings as JSON.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"rules": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Rule files or directories; defaults to the project configuration",
				},
				"include": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Restrict scanning to paths matching these globs",
				},
			},
		},
	}, s.handleScan)

	s.server.AddTool(&mcp.Tool{
		Name:        "check_snippet",
		Description: "Evaluate inline rule YAML against an inline code snippet. Useful for rule development.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"rules_yaml": {
					Type:        "string",
					Description: "Rule file content in YAML",
				},
				"code": {
					Type:        "string",
					Description: "Source code to match against",
				},
				"language": {
					Type:        "string",
					Description: "Language of the snippet (e.g. python, go, javascript)",
				},
			},
			Required: []string{"rules_yaml", "code", "language"},
		},
	}, s.handleCheckSnippet)

	s.server.AddTool(&mcp.Tool{
		Name:        "rules_schema",
		Description: "Return the JSON schema of the rule file format.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleRulesSchema)
}

type scanParams struct {
	Rules   []string `json:"rules"`
	Include []string `json:"include"`
}

func (s *Server) handleScan(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params scanParams
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
			return errorResult(fmt.Errorf("invalid arguments: %w", err)), nil
		}
	}

	report, err := s.runScan(ctx, params)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(report)
}

func (s *Server) runScan(ctx context.Context, params scanParams) (*scan.Report, error) {
	cfg := *s.cfg
	if len(params.Rules) > 0 {
		cfg.RuleFiles = params.Rules
	}
	if len(params.Include) > 0 {
		cfg.Scan.Include = params.Include
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	scanner, err := scan.NewScanner(&cfg)
	if err != nil {
		return nil, err
	}
	return scanner.Run(ctx)
}

type checkSnippetParams struct {
	RulesYAML string `json:"rules_yaml"`
	Code      string `json:"code"`
	Language  string `json:"language"`
}

type snippetReport struct {
	Findings []engine.Finding `json:"findings"`
	Errors   []string         `json:"errors"`
}

func (s *Server) handleCheckSnippet(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params checkSnippetParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return errorResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	report, err := s.checkSnippet(ctx, params)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(report)
}

func (s *Server) checkSnippet(ctx context.Context, params checkSnippetParams) (*snippetReport, error) {
	lang, ok := types.ParseLanguage(params.Language)
	if !ok {
		return nil, fmt.Errorf("unknown language %q", params.Language)
	}
	rules, err := rule.Parse([]byte(params.RulesYAML))
	if err != nil {
		return nil, err
	}

	eng := engine.New(parser.New(), engine.Config{
		ConstantPropagation: s.cfg.ConstantPropagation,
		MaxNestingDepth:     s.cfg.Limits.MaxNestingDepth,
	})
	target := matcher.NewTarget("snippet", []byte(params.Code), lang)
	defer target.Close()

	report := &snippetReport{Findings: []engine.Finding{}, Errors: []string{}}
	for _, r := range rules {
		if !r.AppliesTo(lang) {
			continue
		}
		result, err := eng.EvalRule(ctx, r, target)
		if err != nil {
			if re, ok := err.(*rerr.RuleError); ok {
				report.Errors = append(report.Errors, re.Error())
				continue
			}
			return nil, err
		}
		report.Findings = append(report.Findings, result.Findings...)
		for _, e := range result.Errors {
			report.Errors = append(report.Errors, e.Error())
		}
	}
	return report, nil
}

func (s *Server) handleRulesSchema(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	schema, err := rule.FileSchemaJSON()
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(string(schema)), nil
}
