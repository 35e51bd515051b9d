package schedlock

import (
	adminsvc "github.com/meoying/schedlock-go/internal/admin/service"
	"github.com/meoying/schedlock-go/internal/admin/web"
	dlock "github.com/meoying/schedlock-go/internal/lock"
)

type AdminHandler = web.Handler

// NewAdminHandler 只能看到 namespace 下面的锁
func NewAdminHandler(store adminsvc.Store, namespace string) *AdminHandler {
	return web.NewHandler(NewAdminLockService(store, namespace))
}

func NewAdminLockService(store adminsvc.Store, namespace string) *adminsvc.LockService {
	return adminsvc.NewLockService(store, dlock.NewKeyBuilder(namespace))
}
