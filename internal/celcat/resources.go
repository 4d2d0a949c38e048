package celcat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"celcatsync/internal/models"
)

// Resource is one entry of the backend resource list (a room, for resType 102).
type Resource struct {
	ID   string
	Name string
	Dept string
}

// resourceListKeys are the envelope keys the list may live under, in order.
var resourceListKeys = []string{"items", "rows", "data", "results"}

// Resources lists every resource of the given type.
func (c *Client) Resources(ctx context.Context, resourceType int) ([]Resource, error) {
	params := url.Values{}
	params.Set("myResources", "false")
	params.Set("searchTerm", "-")
	params.Set("pageSize", "500")
	params.Set("pageNumber", "1")
	params.Set("resType", strconv.Itoa(resourceType))
	params.Set("secondaryFilterValue1", "")
	params.Set("secondaryFilterValue2", "")
	endpoint := c.baseURL + resourcesPath + "?" + params.Encode()

	body, err := c.withRetry(ctx, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "*/*")
		return c.do(req)
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Op = "resources"
			return nil, fe
		}
		return nil, &FetchError{Op: "resources", Err: err}
	}

	resources, err := decodeResources(body)
	if err != nil {
		return nil, &DecodeError{Op: "resources", Err: err}
	}
	c.logger.Info("Fetched resource list", "resType", resourceType, "count", len(resources))
	return resources, nil
}

func decodeResources(body []byte) ([]Resource, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}

	var items []models.RawRecord
	found := false
	for _, key := range resourceListKeys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &items); err == nil {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("no resource list under any of %s", strings.Join(resourceListKeys, ", "))
	}

	resources := make([]Resource, 0, len(items))
	for _, item := range items {
		id, _ := item.ID()
		res := Resource{
			ID:   id,
			Name: item.String("name"),
			Dept: strings.TrimSpace(item.String("dept")),
		}
		if res.Name == "" {
			res.Name = res.ID
		}
		resources = append(resources, res)
	}
	return resources, nil
}

// FilterByDept keeps the resources of one department. "" or "all" keeps
// everything.
func FilterByDept(resources []Resource, dept string) []Resource {
	if dept == "" || strings.EqualFold(dept, "all") {
		return resources
	}
	var out []Resource
	for _, r := range resources {
		if r.Dept == dept {
			out = append(out, r)
		}
	}
	return out
}

// Departments counts resources per non-empty department.
func Departments(resources []Resource) map[string]int {
	out := make(map[string]int)
	for _, r := range resources {
		if r.Dept != "" {
			out[r.Dept]++
		}
	}
	return out
}
