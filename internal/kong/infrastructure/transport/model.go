package transport

type errorResponse struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

// Endpoints holds the resource paths of the kong API.
type Endpoints struct {
	Accounts   string
	Auth       string
	Properties string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Accounts:   "/accounts",
		Auth:       "/auth",
		Properties: "/properties",
	}
}
