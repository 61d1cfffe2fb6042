package qualys

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/iglennon-qualys/ResetAssetGroups/pkg/assetgroup"
)

// ListOutput is the ASSET_GROUP_LIST_OUTPUT envelope returned by action=list.
type ListOutput struct {
	XMLName  xml.Name      `xml:"ASSET_GROUP_LIST_OUTPUT"`
	Response *ListResponse `xml:"RESPONSE"`
}

// ListResponse holds the groups. Qualys omits ASSET_GROUP_LIST entirely
// when the subscription has no groups.
type ListResponse struct {
	DateTime    string             `xml:"DATETIME"`
	AssetGroups []AssetGroupRecord `xml:"ASSET_GROUP_LIST>ASSET_GROUP"`
	Warning     *Warning           `xml:"WARNING"`
}

// AssetGroupRecord is a single ASSET_GROUP element.
type AssetGroupRecord struct {
	ID             string `xml:"ID" json:"ID"`
	Title          string `xml:"TITLE" json:"TITLE"`
	BusinessImpact string `xml:"BUSINESS_IMPACT" json:"BUSINESS_IMPACT"`
}

// Warning signals a truncated list.
type Warning struct {
	Code string `xml:"CODE"`
	Text string `xml:"TEXT"`
	URL  string `xml:"URL"`
}

// Groups converts the records to normalized asset groups.
func (o *ListOutput) Groups() []assetgroup.AssetGroup {
	if o == nil || o.Response == nil {
		return nil
	}
	groups := make([]assetgroup.AssetGroup, 0, len(o.Response.AssetGroups))
	for _, r := range o.Response.AssetGroups {
		groups = append(groups, assetgroup.Normalize(assetgroup.AssetGroup{
			ID:             r.ID,
			Title:          r.Title,
			BusinessImpact: r.BusinessImpact,
		}))
	}
	return groups
}

// SimpleReturn is the acknowledgement envelope returned by action=edit.
type SimpleReturn struct {
	XMLName  xml.Name        `xml:"SIMPLE_RETURN"`
	Response *SimpleResponse `xml:"RESPONSE"`
}

// SimpleResponse carries the outcome text and, on failure, a CODE.
type SimpleResponse struct {
	DateTime string `xml:"DATETIME"`
	Code     string `xml:"CODE"`
	Text     string `xml:"TEXT"`
	Items    []Item `xml:"ITEM_LIST>ITEM"`
}

// Item is a KEY/VALUE pair in an ITEM_LIST.
type Item struct {
	Key   string `xml:"KEY"`
	Value string `xml:"VALUE"`
}

// Text returns the acknowledgement message.
func (r *SimpleReturn) Text() string {
	if r == nil || r.Response == nil {
		return ""
	}
	return strings.TrimSpace(r.Response.Text)
}

func decodeList(op string, body []byte) (*ListOutput, error) {
	out := &ListOutput{}
	if err := decodeXML(body, out); err != nil {
		return nil, &APIError{Kind: KindSchemaMismatch, Op: op, Err: err}
	}
	if out.Response == nil {
		return nil, &APIError{Kind: KindSchemaMismatch, Op: op, Detail: "RESPONSE element missing"}
	}
	for i, r := range out.Response.AssetGroups {
		if strings.TrimSpace(r.ID) == "" {
			return nil, &APIError{Kind: KindSchemaMismatch, Op: op, Detail: fmt.Sprintf("ASSET_GROUP #%d has no ID", i+1)}
		}
	}
	return out, nil
}

func decodeSimpleReturn(op string, body []byte) (*SimpleReturn, error) {
	out := &SimpleReturn{}
	if err := decodeXML(body, out); err != nil {
		return nil, &APIError{Kind: KindSchemaMismatch, Op: op, Err: err}
	}
	if out.Response == nil {
		return nil, &APIError{Kind: KindSchemaMismatch, Op: op, Detail: "RESPONSE element missing"}
	}
	if code := strings.TrimSpace(out.Response.Code); code != "" {
		return out, &APIError{Kind: KindRejected, Op: op, Detail: fmt.Sprintf("code %s: %s", code, out.Text())}
	}
	return out, nil
}

func decodeXML(body []byte, v interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("empty response body")
	}
	return xml.Unmarshal(body, v)
}
