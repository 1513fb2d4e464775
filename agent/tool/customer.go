package tool

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	catalogx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/catalog"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
)

var idToken = regexp.MustCompile(`\d+`)

var _ contractx.Tool = (*GetCustomerTool)(nil)

type GetCustomerTool struct {
	directory contractx.CustomerDirectory
}

func NewGetCustomerTool(directory contractx.CustomerDirectory) *GetCustomerTool {
	return &GetCustomerTool{directory: directory}
}

func (t *GetCustomerTool) Name() string {
	return contractx.ToolGetCustomer
}

// Run never fails on bad input: a missing or unparsable id is reported as
// not found in the result data. Only directory errors are returned.
func (t *GetCustomerTool) Run(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResult, error) {
	id, err := ExtractCustomerID(req.Input)
	if err != nil {
		return notFound(t.Name(), err), nil
	}

	rec, ok, err := t.directory.Lookup(ctx, id)
	if err != nil {
		return contractx.ToolResult{}, fmt.Errorf("lookup customer %d: %w", id, err)
	}
	if !ok {
		return notFound(t.Name(), fmt.Errorf("%w: customer %d", contractx.ErrIdentificationNotFound, id)), nil
	}

	return contractx.ToolResult{
		Tool: t.Name(),
		Text: fmt.Sprintf(
			"Hi %s! I see you're currently using the %s. Would you like to see the latest %s models?",
			rec.Name, rec.CurrentPhoneModel, catalogx.BrandOf(rec.CurrentPhoneModel),
		),
		Data: contractx.CustomerData{Found: true, Customer: &rec},
	}, nil
}

// HasCustomerID reports whether text carries a digit run at all.
func HasCustomerID(text string) bool {
	return idToken.MatchString(text)
}

// ExtractCustomerID returns the first integer token of text.
func ExtractCustomerID(text string) (int, error) {
	tok := idToken.FindString(text)
	if tok == "" {
		return 0, fmt.Errorf("%w: no customer id in message", contractx.ErrIdentificationNotFound)
	}
	id, err := strconv.Atoi(tok)
	if err != nil {
		return 0, errors.Join(
			fmt.Errorf("%w: customer id %q", contractx.ErrMalformedInput, tok),
			contractx.ErrIdentificationNotFound,
		)
	}
	return id, nil
}

func notFound(name string, reason error) contractx.ToolResult {
	return contractx.ToolResult{
		Tool: name,
		Text: "I couldn't find a customer record for that id. No problem though, what kind of phone do you have in mind?",
		Data: contractx.CustomerData{Found: false, Reason: reason},
	}
}
