package sprest

import (
	"context"
	"fmt"
	neturl "net/url"
)

// minimal web facade family. domain facades compose behavior over the base
// node types instead of extending them, so each facade is a thin wrapper
// holding a refined node

type Web struct {
	*QueryableInstance
}

func NewWeb(transport Transport, siteUrl string) (*Web, error) {
	instance, err := NewQueryableInstance(transport, siteUrl, "_api/web")
	if err != nil {
		return nil, err
	}
	return &Web{QueryableInstance: instance}, nil
}

func webFactory(base *Queryable) *Web {
	return &Web{QueryableInstance: &QueryableInstance{Queryable: base}}
}

func (self *Web) Webs() *Webs {
	return Derive(self.Queryable, websFactory, "webs", true)
}

func (self *Web) SiteUsers() *SiteUsers {
	return Derive(self.Queryable, siteUsersFactory, "siteusers", true)
}

type WebUpdateResult struct {
	Web  *Web
	Data []byte
}

func (self *Web) Update(ctx context.Context, props map[string]any) (*WebUpdateResult, error) {
	update := Update(self.QueryableInstance, "SP.Web", func(body []byte) (*WebUpdateResult, error) {
		return &WebUpdateResult{
			Web:  self,
			Data: body,
		}, nil
	})
	return update(ctx, props)
}

type Webs struct {
	*QueryableCollection
}

func websFactory(base *Queryable) *Webs {
	return &Webs{QueryableCollection: &QueryableCollection{Queryable: base}}
}

type SiteUsers struct {
	*QueryableCollection
}

func siteUsersFactory(base *Queryable) *SiteUsers {
	return &SiteUsers{QueryableCollection: &QueryableCollection{Queryable: base}}
}

// login names carry claim prefixes with characters that are not safe in a
// path segment, so the escaped value rides an alias token and surfaces as
// a quoted query parameter at serialization time
func (self *SiteUsers) GetByLoginName(loginName string) *SiteUser {
	path := fmt.Sprintf("getByLoginName('!@v::%s')", neturl.PathEscape(loginName))
	return Derive(self.Queryable, siteUserFactory, path, true)
}

func (self *SiteUsers) GetById(id int) *SiteUser {
	return Derive(self.Queryable, siteUserFactory, fmt.Sprintf("getById(%d)", id), true)
}

// the users collection hangs off a web; derive the owning web node back
// from the collection's parent address
func (self *SiteUsers) Web() (*Web, error) {
	return Parent(self.Queryable, webFactory, "", "", nil)
}

type SiteUser struct {
	*QueryableInstance
}

func siteUserFactory(base *Queryable) *SiteUser {
	return &SiteUser{QueryableInstance: &QueryableInstance{Queryable: base}}
}

type SiteUserUpdateResult struct {
	User *SiteUser
	Data []byte
}

func (self *SiteUser) Update(ctx context.Context, props map[string]any) (*SiteUserUpdateResult, error) {
	update := Update(self.QueryableInstance, "SP.User", func(body []byte) (*SiteUserUpdateResult, error) {
		return &SiteUserUpdateResult{
			User: self,
			Data: body,
		}, nil
	})
	return update(ctx, props)
}
