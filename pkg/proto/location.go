package proto

import "errors"

// Location is a region where databases can be created.
type Location struct {
	Name        string            `json:"name,omitempty"`
	LocationID  string            `json:"locationId,omitempty"`
	DisplayName string            `json:"displayName,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Metadata    *Any              `json:"metadata,omitempty"`
}

func (*Location) ProtoName() string { return locationPackage + "Location" }

// LocationMetadata is the service-specific metadata attached to a Location.
type LocationMetadata struct{}

func (*LocationMetadata) ProtoName() string { return adminPackage + "LocationMetadata" }

// ListLocationsRequest lists the locations available to a project.
type ListLocationsRequest struct {
	Name      string `json:"name,omitempty"`
	Filter    string `json:"filter,omitempty"`
	PageSize  int32  `json:"pageSize,omitempty"`
	PageToken string `json:"pageToken,omitempty"`
}

func (*ListLocationsRequest) ProtoName() string { return locationPackage + "ListLocationsRequest" }

func (r *ListLocationsRequest) Validate() error {
	return errors.Join(required("name", r.Name), nonNegative("page_size", r.PageSize))
}

// ListLocationsResponse is one page of locations.
type ListLocationsResponse struct {
	Locations     []*Location `json:"locations,omitempty"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

func (*ListLocationsResponse) ProtoName() string { return locationPackage + "ListLocationsResponse" }

// GetLocationRequest fetches one location.
type GetLocationRequest struct {
	Name string `json:"name,omitempty"`
}

func (*GetLocationRequest) ProtoName() string { return locationPackage + "GetLocationRequest" }

func (r *GetLocationRequest) Validate() error { return required("name", r.Name) }
