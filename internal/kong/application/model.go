package application

// UserInput is a request value that can check itself before it is sent.
type UserInput interface {
	Validate() error
}

// AccountCreationInput describes a new account.
type AccountCreationInput struct {
	Username string  `json:"username"`
	Email    *string `json:"email,omitempty"`
	Password string  `json:"password"`
}

func (in AccountCreationInput) Validate() error {
	if err := ValidateUsername(in.Username); err != nil {
		return err
	}
	if in.Email != nil {
		if err := ValidateEmail(*in.Email); err != nil {
			return err
		}
	}
	return ValidatePassword(in.Password)
}

// AccountAuthInput carries login credentials.
type AccountAuthInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (in AccountAuthInput) Validate() error {
	if err := ValidateUsername(in.Username); err != nil {
		return err
	}
	return ValidatePassword(in.Password)
}

type Photo struct {
	Filename string
	Content  []byte
}

// PropertyCreationInput describes a property listing submitted as a
// multipart form.
type PropertyCreationInput struct {
	Name        string
	Bedrooms    uint16
	Bathrooms   uint16
	Sqft        float64
	Address     string
	Agent       int64
	Description string
	Price       *float64
	Photos      []Photo
}

func (in PropertyCreationInput) Validate() error {
	if in.Name == "" || in.Address == "" {
		return ErrInvalidInput
	}
	if in.Sqft < 0 {
		return ErrInvalidInput
	}
	if in.Price != nil && *in.Price < 0 {
		return ErrInvalidInput
	}
	for _, photo := range in.Photos {
		if photo.Filename == "" || len(photo.Content) == 0 {
			return ErrInvalidInput
		}
	}
	return nil
}

// Account is the public view of an account returned on creation.
type Account struct {
	Username string `json:"username"`
}

// Session is the body of a successful authentication. kong itself answers
// with an empty body, in which case every field is zero.
type Session struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
}

type Property struct {
	Name          string   `json:"name"`
	Price         *float64 `json:"price"`
	Bedrooms      uint16   `json:"bedrooms"`
	Bathrooms     uint16   `json:"bathrooms"`
	Sqft          float64  `json:"sqft"`
	Address       string   `json:"address"`
	AgentID       *int64   `json:"agentid"`
	Description   string   `json:"description"`
	OnlineViews   uint64   `json:"online_views"`
	PhysicalViews uint16   `json:"physical_view"`
	Likes         uint64   `json:"likes"`
	Bookmarks     uint64   `json:"bookmarks"`
	// Photos is a JSON encoded list of photo paths.
	Photos string `json:"photos"`
	Added  string `json:"added"`
}
