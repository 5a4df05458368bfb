package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/lexicon"
	"github.com/cloo-solutions/nutrirag/internal/service"
)

// policyValue is a pflag.Value restricted to the known no-match policies
type policyValue domain.OnNoMatchPolicy

var _ pflag.Value = (*policyValue)(nil)

func (p *policyValue) String() string { return string(*p) }

func (p *policyValue) Set(s string) error {
	switch v := domain.OnNoMatchPolicy(strings.ToLower(strings.TrimSpace(s))); v {
	case domain.OnNoMatchReject, domain.OnNoMatchBroaden:
		*p = policyValue(v)
		return nil
	default:
		return fmt.Errorf("must be %q or %q", domain.OnNoMatchReject, domain.OnNoMatchBroaden)
	}
}

func (p *policyValue) Type() string { return "policy" }

type classifyOutput struct {
	Query   string         `json:"query"`
	Kind    string         `json:"kind"`
	Domains []string       `json:"domains"`
	Scores  map[string]int `json:"scores"`
	Budget  map[string]int `json:"budget,omitempty"`
}

// ClassifyCmd prints how a query would be routed without calling any index or model
func ClassifyCmd() *cobra.Command {
	var (
		lexiconPath string
		minK, maxK  int
		output      string
	)
	policy := policyValue(domain.OnNoMatchReject)

	cmd := &cobra.Command{
		Use:   "classify <query>",
		Short: "Show domain classification and retrieval budget for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lex, err := lexicon.Load(lexiconPath)
			if err != nil {
				return err
			}
			out, err := classify(lex, strings.Join(args, " "), domain.OnNoMatchPolicy(policy), minK, maxK)
			if err != nil {
				return err
			}
			return writeClassify(cmd.OutOrStdout(), lex, out, output)
		},
	}

	cmd.Flags().StringVar(&lexiconPath, "lexicon", "", "Path to a lexicon YAML file (built-in lexicon when empty)")
	cmd.Flags().Var(&policy, "on-no-match", "No-match policy: reject or broaden_to_all")
	cmd.Flags().IntVar(&minK, "min-k", service.DefaultMinK, "Minimum passages per selected domain")
	cmd.Flags().IntVar(&maxK, "max-k", service.DefaultMaxK, "Maximum passages per selected domain")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format (text or json)")

	return cmd
}

func classify(lex *lexicon.Lexicon, query string, policy domain.OnNoMatchPolicy, minK, maxK int) (*classifyOutput, error) {
	classifier, err := service.NewClassifier(lex, policy)
	if err != nil {
		return nil, err
	}
	allocator, err := service.NewBudgetAllocator(lex, minK, maxK)
	if err != nil {
		return nil, err
	}

	result := classifier.Classify(query)
	out := &classifyOutput{
		Query:   query,
		Kind:    string(result.Kind),
		Domains: make([]string, 0, len(result.Domains)),
		Scores:  make(map[string]int),
	}
	for d, s := range allocator.Scores(query) {
		out.Scores[string(d)] = s
	}
	if len(result.Domains) == 0 {
		return out, nil
	}

	budget := allocator.Allocate(query)
	out.Budget = make(map[string]int, len(result.Domains))
	for _, d := range result.Domains {
		out.Domains = append(out.Domains, string(d))
		out.Budget[string(d)] = budget[d]
	}
	return out, nil
}

func writeClassify(w io.Writer, lex *lexicon.Lexicon, out *classifyOutput, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(out.Domains) == 0 {
		_, err := fmt.Fprintf(w, "%s: query would be refused\n", out.Kind)
		return err
	}
	if _, err := fmt.Fprintf(w, "%s\n", out.Kind); err != nil {
		return err
	}
	for _, d := range out.Domains {
		if _, err := fmt.Fprintf(w, "  %-10s %-14s score=%d k=%d\n",
			d, lex.Label(domain.Domain(d)), out.Scores[d], out.Budget[d]); err != nil {
			return err
		}
	}
	return nil
}
