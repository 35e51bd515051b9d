package glock

const (
	// ModeInsertFirst 是指默认要加的分布式锁大概率还没有人加过
	// 采用这两种 Mode 就是为了在不同的场景下追求极致的性能
	// 如果你预测你的 key 大概率不在数据库中，就用这个模式
	ModeInsertFirst = "insert"
	// ModeCASFirst 是指默认要加的分布式锁已经很多人加过之后又释放了
	// 定时任务就是这种情况，任务的名字是固定的，第一次执行之后数据库里面就一直有这一行了
	// 所以这是默认的模式
	ModeCASFirst = "cas"

	// 理论上还有一种 SELECT FOR UPDATE 的写法，但是我们没有必要支持
	// 它的性能极差，并且容易引发表锁、死锁之类的问题
)
