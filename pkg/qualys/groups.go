package qualys

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/iglennon-qualys/ResetAssetGroups/pkg/assetgroup"
)

const (
	assetGroupPath = "/api/2.0/fo/asset/group"

	opList   = "get Asset Group data"
	opUpdate = "update Asset Group"
)

// ListAssetGroups fetches every asset group with its title and business impact.
func (s *Session) ListAssetGroups(ctx context.Context) (*ListOutput, error) {
	target := fmt.Sprintf("%s%s?action=list&show_attributes=BUSINESS_IMPACT,TITLE", s.baseURL, assetGroupPath)
	body, err := s.do(ctx, call{method: http.MethodGet, url: target, op: opList})
	if err != nil {
		return nil, err
	}
	out, err := decodeList(opList, body)
	if err != nil {
		return nil, err
	}
	if w := out.Response.Warning; w != nil {
		s.log.Warnf("asset group list truncated (code %s): %s", w.Code, w.Text)
	}
	return out, nil
}

// UpdateAssetGroup sets the business impact of group id. An empty impact
// means assetgroup.DefaultTarget.
func (s *Session) UpdateAssetGroup(ctx context.Context, id string, impact assetgroup.Impact) (*SimpleReturn, error) {
	if impact == "" {
		impact = assetgroup.DefaultTarget
	}
	target := fmt.Sprintf("%s%s?action=edit&id=%s&set_business_impact=%s",
		s.baseURL, assetGroupPath, url.QueryEscape(id), url.QueryEscape(string(impact)))
	body, err := s.do(ctx, call{method: http.MethodPost, url: target, op: opUpdate, dumpOnFailure: true})
	if err != nil {
		return nil, err
	}
	return decodeSimpleReturn(opUpdate, body)
}
