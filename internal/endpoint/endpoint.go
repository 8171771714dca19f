// Package endpoint maps logical Clover Network operations to absolute URLs.
package endpoint

import (
	"sort"
	"strings"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://clover-network-app-rok7a.ondigitalocean.app"

// Domain groups related operations.
type Domain string

const (
	DomainAuth    Domain = "auth"
	DomainUser    Domain = "user"
	DomainSearch  Domain = "search"
	DomainFeed    Domain = "feed"
	DomainGroup   Domain = "group"
	DomainConnect Domain = "connect"
)

// Key names a single remote operation.
type Key string

// auth
const (
	Login          Key = "login"
	Register       Key = "register"
	Logout         Key = "logout"
	ForgotPassword Key = "forgotPassword"
	ResetPassword  Key = "resetPassword"
)

// user
const (
	GetUserInfo      Key = "getUserInfo"
	GetUserProfile   Key = "getUserProfile"
	UpdateProfile    Key = "updateProfile"
	UpdateAvatar     Key = "updateAvatar"
	ChangePassword   Key = "changePassword"
	GetListFollowers Key = "getListFollowers"
	GetListFollowing Key = "getListFollowing"
)

// search
const (
	SearchKey Key = "searchKey"
)

// feed
const (
	PostFeed         Key = "postFeed"
	ListFeed         Key = "listFeed"
	PostComment      Key = "postComment"
	ListFeedOfGroup  Key = "listFeedOfGroup"
	ListAllGroupHome Key = "listAllGroupHome"
	GetFeedDetail    Key = "getFeedDetail"
	GetFeedLink      Key = "getFeedLink"
	GetListComment   Key = "getListComment"
	CheckUserLike    Key = "checkUserLike"
	LikeFeed         Key = "likeFeed"
)

// group
const (
	CreateGroup        Key = "createGroup"
	GetGroupInfo       Key = "getGroupInfo"
	GetListAllGroup    Key = "getListAllGroup"
	GetListMemberGroup Key = "getListMemberGroup"
	UpdateBanner       Key = "updateBanner"
	DisableGroup       Key = "disableGroup"
	JoinGroup          Key = "joinGroup"
)

// connect
const (
	ConnectUser Key = "connectUser"
)

// route is the path below /api for one key. segment is the server-side
// controller name, which does not always match the domain name.
type route struct {
	domain  Domain
	segment string
	action  string
}

var routes = map[Key]route{
	Login:          {DomainAuth, "authenticate", "login-by-email"},
	Register:       {DomainAuth, "authenticate", "signup-by-email"},
	Logout:         {DomainAuth, "authenticate", "logout"},
	ForgotPassword: {DomainAuth, "authenticate", "forgot-password"},
	ResetPassword:  {DomainAuth, "authenticate", "reset-password"},

	GetUserInfo:      {DomainUser, "user", "get-user-info"},
	GetUserProfile:   {DomainUser, "user", "get-user-profile"},
	UpdateProfile:    {DomainUser, "user", "edit-profile"},
	UpdateAvatar:     {DomainUser, "user", "change-user-avatar"},
	ChangePassword:   {DomainUser, "user", "change-password"},
	GetListFollowers: {DomainUser, "user", "get-list-connector"},
	GetListFollowing: {DomainUser, "user", "get-list-connect"},

	SearchKey: {DomainSearch, "search", "search-by"},

	PostFeed:         {DomainFeed, "feed", "post"},
	ListFeed:         {DomainFeed, "feed", "list-user-home-v2"},
	PostComment:      {DomainFeed, "feed", "comment"},
	ListFeedOfGroup:  {DomainFeed, "feed", "list-group-home"},
	ListAllGroupHome: {DomainFeed, "feed", "list-all-group-home"},
	GetFeedDetail:    {DomainFeed, "feed", "detail"},
	GetFeedLink:      {DomainFeed, "feed", "get-link-detail-feed"},
	GetListComment:   {DomainFeed, "feed", "get-list-comment"},
	CheckUserLike:    {DomainFeed, "feed", "check-user-like"},
	LikeFeed:         {DomainFeed, "feed", "react"},

	CreateGroup:        {DomainGroup, "group", "create-new-group"},
	GetGroupInfo:       {DomainGroup, "group", "get-group-info"},
	GetListAllGroup:    {DomainGroup, "group", "list-all-group-of-user"},
	GetListMemberGroup: {DomainGroup, "group", "list-member-group"},
	UpdateBanner:       {DomainGroup, "group", "change-group-banner"},
	DisableGroup:       {DomainGroup, "group", "disable-group"},
	JoinGroup:          {DomainGroup, "group", "join"},

	ConnectUser: {DomainConnect, "connection", "connect-user"},
}

// Registry resolves keys against a base host.
type Registry struct {
	base string
}

// New creates a registry rooted at base. An empty base selects
// DefaultBaseURL. Trailing slashes are dropped.
func New(base string) Registry {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return Registry{base: base}
}

// Base returns the host the registry resolves against.
func (r Registry) Base() string {
	if r.base == "" {
		return DefaultBaseURL
	}
	return r.base
}

// URL returns the absolute URL for k. It panics on an unregistered key.
func (r Registry) URL(k Key) string {
	rt, ok := routes[k]
	if !ok {
		panic("endpoint: unknown key " + string(k))
	}
	return r.Base() + "/api/" + rt.segment + "/" + rt.action
}

// DomainOf returns the domain k belongs to, or "" for an unknown key.
func DomainOf(k Key) Domain {
	return routes[k].domain
}

// Keys returns every registered key, sorted by domain then name.
func Keys() []Key {
	keys := make([]Key, 0, len(routes))
	for k := range routes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := routes[keys[i]].domain, routes[keys[j]].domain
		if di != dj {
			return di < dj
		}
		return keys[i] < keys[j]
	})
	return keys
}
