package provider

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ProjectConnection is a parsed Azure AI project connection string of the
// form "<host>;<subscription-id>;<resource-group>;<project-name>".
type ProjectConnection struct {
	Host           string
	SubscriptionID string
	ResourceGroup  string
	ProjectName    string
}

var errConnectionString = errors.New("invalid project connection string")

func ParseConnectionString(s string) (ProjectConnection, error) {
	parts := strings.Split(strings.TrimSpace(s), ";")
	if len(parts) != 4 {
		return ProjectConnection{}, fmt.Errorf("%w: want 4 ';'-separated parts, got %d", errConnectionString, len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	host := parts[0]
	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return ProjectConnection{}, fmt.Errorf("%w: host: %v", errConnectionString, err)
		}
		host = u.Host
	}
	host = strings.TrimSuffix(host, "/")

	pc := ProjectConnection{
		Host:           host,
		SubscriptionID: parts[1],
		ResourceGroup:  parts[2],
		ProjectName:    parts[3],
	}
	var missing []string
	if pc.Host == "" {
		missing = append(missing, "host")
	}
	if pc.SubscriptionID == "" {
		missing = append(missing, "subscription id")
	}
	if pc.ResourceGroup == "" {
		missing = append(missing, "resource group")
	}
	if pc.ProjectName == "" {
		missing = append(missing, "project name")
	}
	if len(missing) > 0 {
		return ProjectConnection{}, fmt.Errorf("%w: empty %s", errConnectionString, strings.Join(missing, ", "))
	}
	return pc, nil
}

// Endpoint is the agents API base URL for the project.
func (p ProjectConnection) Endpoint() string {
	return fmt.Sprintf(
		"https://%s/agents/v1.0/subscriptions/%s/resourceGroups/%s/providers/Microsoft.MachineLearningServices/workspaces/%s/",
		p.Host, url.PathEscape(p.SubscriptionID), url.PathEscape(p.ResourceGroup), url.PathEscape(p.ProjectName),
	)
}
