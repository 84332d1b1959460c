package enums

// UserType distinguishes buyers from shop owners (partners).
type UserType string

const (
	UserTypeBuyer UserType = "buyer"
	UserTypeShop  UserType = "shop"
)

var validUserTypes = []UserType{
	UserTypeBuyer,
	UserTypeShop,
}

func (u UserType) String() string { return string(u) }

func (u UserType) IsValid() bool { return oneOf(u, validUserTypes) }

func ParseUserType(value string) (UserType, error) {
	return parseOneOf("user type", value, validUserTypes)
}
