package zscaler

import (
	"fmt"
	"sort"
	"strings"
)

// Cloud identifies a Zscaler cloud environment.
type Cloud string

// Supported cloud environments.
const (
	CloudProduction Cloud = "PRODUCTION"
	CloudZPATwo     Cloud = "ZPATWO"
	CloudBeta       Cloud = "BETA"
	CloudGov        Cloud = "GOV"
	CloudGovUS      Cloud = "GOVUS"
	CloudPreview    Cloud = "PREVIEW"
	CloudDev        Cloud = "DEV"
	CloudQA         Cloud = "QA"
	CloudQA2        Cloud = "QA2"
)

var cloudBaseURLs = map[Cloud]string{
	CloudProduction: "https://config.private.zscaler.com",
	CloudZPATwo:     "https://config.zpatwo.net",
	CloudBeta:       "https://config.zpabeta.net",
	CloudGov:        "https://zpa.zpagov.net",
	CloudGovUS:      "https://zpa.zpagov.us",
	CloudPreview:    "https://config.zpapreview.net",
	CloudDev:        "https://public-api.dev.zpath.net",
	CloudQA:         "https://config.qa.zpath.net",
	CloudQA2:        "https://pdx2-zmgmt.qa2.zpath.net",
}

// Clouds returns the supported cloud environments in sorted order.
func Clouds() []Cloud {
	clouds := make([]Cloud, 0, len(cloudBaseURLs))
	for cloud := range cloudBaseURLs {
		clouds = append(clouds, cloud)
	}

	sort.Slice(clouds, func(i, j int) bool { return clouds[i] < clouds[j] })

	return clouds
}

// ParseCloud normalizes a cloud tag. An empty tag selects production.
func ParseCloud(tag string) (Cloud, error) {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	if tag == "" {
		return CloudProduction, nil
	}

	cloud := Cloud(tag)
	if _, ok := cloudBaseURLs[cloud]; !ok {
		return "", fmt.Errorf("%w %q: valid clouds are %s", ErrUnknownCloud, tag, joinClouds(Clouds()))
	}

	return cloud, nil
}

// BaseURL returns the API base URL of the cloud.
func (c Cloud) BaseURL() (string, error) {
	cloud, err := ParseCloud(string(c))
	if err != nil {
		return "", err
	}

	return cloudBaseURLs[cloud], nil
}

// String implements fmt.Stringer.
func (c Cloud) String() string {
	return string(c)
}

func joinClouds(clouds []Cloud) string {
	names := make([]string, len(clouds))
	for i, cloud := range clouds {
		names[i] = string(cloud)
	}

	return strings.Join(names, ", ")
}
