// Package component defines the typed payloads a portfolio component can carry
// and the rules each payload must satisfy.
package component

// Type tags the shape of a component's data.
type Type string

const (
	TypeText         Type = "text"
	TypeCardList     Type = "card-list"
	TypePillList     Type = "pill-list"
	TypeSocialLinks  Type = "social-links"
	TypeLinkList     Type = "link-list"
	TypeImage        Type = "image"
	TypeBio          Type = "bio"
	TypePersonalInfo Type = "personal-info"
	TypeAvatar       Type = "avatar"
)

var allTypes = []Type{
	TypeText,
	TypeCardList,
	TypePillList,
	TypeSocialLinks,
	TypeLinkList,
	TypeImage,
	TypeBio,
	TypePersonalInfo,
	TypeAvatar,
}

// Types lists every supported component type.
func Types() []Type {
	return append([]Type(nil), allTypes...)
}

// Valid reports whether t is a supported component type.
func (t Type) Valid() bool {
	for _, candidate := range allTypes {
		if t == candidate {
			return true
		}
	}
	return false
}

// Data is implemented by exactly one struct per Type. Field rules live in the
// validate tags and are checked by Decode.
type Data interface {
	Type() Type
	sealed()
}

type Text struct {
	Content string `json:"content" validate:"notblank,max=10000"`
}

type Card struct {
	Title       string   `json:"title" validate:"notblank,max=100"`
	Description string   `json:"description,omitempty" validate:"max=500"`
	URL         string   `json:"url,omitempty" validate:"omitempty,weburl"`
	ImageURL    string   `json:"image_url,omitempty" validate:"omitempty,weburl"`
	Tags        []string `json:"tags,omitempty" validate:"max=10,dive,notblank,max=30"`
}

type CardList struct {
	Cards []Card `json:"cards" validate:"min=1,max=20,dive"`
}

type PillList struct {
	Items []string `json:"items" validate:"min=1,max=30,dive,notblank,max=50"`
}

// Platforms accepted by social links.
const (
	PlatformGitHub   = "github"
	PlatformLinkedIn = "linkedin"
	PlatformX        = "x"
	PlatformWebsite  = "website"
	PlatformEmail    = "email"
	PlatformOther    = "other"
)

type SocialLink struct {
	Platform string `json:"platform" validate:"oneof=github linkedin x website email other"`
	URL      string `json:"url" validate:"notblank"`
}

type SocialLinks struct {
	Links []SocialLink `json:"links" validate:"min=1,max=10,dive"`
}

type Link struct {
	Label string `json:"label" validate:"notblank,max=100"`
	URL   string `json:"url" validate:"notblank,weburl"`
}

type LinkList struct {
	Links []Link `json:"links" validate:"min=1,max=20,dive"`
}

type Image struct {
	URL     string `json:"url" validate:"notblank,weburl"`
	Alt     string `json:"alt,omitempty" validate:"max=200"`
	Caption string `json:"caption,omitempty" validate:"max=300"`
}

type Bio struct {
	Heading string `json:"heading,omitempty" validate:"max=100"`
	Body    string `json:"body" validate:"notblank,max=2000"`
}

type PersonalInfo struct {
	FullName string `json:"full_name" validate:"notblank,max=100"`
	Headline string `json:"headline,omitempty" validate:"max=150"`
	Location string `json:"location,omitempty" validate:"max=100"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    string `json:"phone,omitempty" validate:"max=30"`
}

type Avatar struct {
	URL string `json:"url" validate:"notblank,weburl"`
	Alt string `json:"alt,omitempty" validate:"max=200"`
}

func (Text) Type() Type         { return TypeText }
func (CardList) Type() Type     { return TypeCardList }
func (PillList) Type() Type     { return TypePillList }
func (SocialLinks) Type() Type  { return TypeSocialLinks }
func (LinkList) Type() Type     { return TypeLinkList }
func (Image) Type() Type        { return TypeImage }
func (Bio) Type() Type          { return TypeBio }
func (PersonalInfo) Type() Type { return TypePersonalInfo }
func (Avatar) Type() Type       { return TypeAvatar }

func (*Text) sealed()         {}
func (*CardList) sealed()     {}
func (*PillList) sealed()     {}
func (*SocialLinks) sealed()  {}
func (*LinkList) sealed()     {}
func (*Image) sealed()        {}
func (*Bio) sealed()          {}
func (*PersonalInfo) sealed() {}
func (*Avatar) sealed()       {}

func newData(t Type) Data {
	switch t {
	case TypeText:
		return &Text{}
	case TypeCardList:
		return &CardList{}
	case TypePillList:
		return &PillList{}
	case TypeSocialLinks:
		return &SocialLinks{}
	case TypeLinkList:
		return &LinkList{}
	case TypeImage:
		return &Image{}
	case TypeBio:
		return &Bio{}
	case TypePersonalInfo:
		return &PersonalInfo{}
	case TypeAvatar:
		return &Avatar{}
	}
	return nil
}
