package broker

import (
	"tickflow/internal/model"
	"tickflow/pkg/errors"
	"tickflow/pkg/errors/ecode"
)

// Registry 按账户持有网关实例，加载时构建，运行期只读
type Registry struct {
	accounts map[string]model.Account
	gateways map[string]Gateway
}

func NewRegistry() *Registry {
	return &Registry{
		accounts: make(map[string]model.Account),
		gateways: make(map[string]Gateway),
	}
}

// Register 绑定账户与网关
func (r *Registry) Register(account model.Account, gw Gateway) {
	r.accounts[account.Name] = account
	r.gateways[account.Name] = gw
}

// Gateway 按账户名取网关
func (r *Registry) Gateway(account string) (Gateway, error) {
	gw, ok := r.gateways[account]
	if !ok {
		return nil, errors.WithCode(ecode.NotFoundErr, "no gateway for account %q", account)
	}
	return gw, nil
}

// Account 账户引用
func (r *Registry) Account(name string) (model.Account, bool) {
	a, ok := r.accounts[name]
	return a, ok
}

// Accounts 全部账户名
func (r *Registry) Accounts() []string {
	names := make([]string, 0, len(r.accounts))
	for name := range r.accounts {
		names = append(names, name)
	}
	return names
}
